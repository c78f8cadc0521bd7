package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ServiceItem is one entry of SERVICES content.
type ServiceItem struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price,omitempty"`
}

// HeroBlock is the HERO content shape.
type HeroBlock struct {
	Headline    string `json:"headline"`
	Subheadline string `json:"subheadline,omitempty"`
	CTAText     string `json:"cta_text,omitempty"`
}

// AboutBlock is the ABOUT content shape.
type AboutBlock struct {
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// Testimonial is one entry of TESTIMONIALS content.
type Testimonial struct {
	Author string `json:"author"`
	Role   string `json:"role,omitempty"`
	Quote  string `json:"quote"`
}

// FAQItem is one entry of FAQ content.
type FAQItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// SEOBlock is the SEO content shape.
type SEOBlock struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords,omitempty"`
}

// ImageRef names one generated or uploaded image.
type ImageRef struct {
	URL        string `json:"url"`
	Alt        string `json:"alt,omitempty"`
	StorageKey string `json:"storage_key,omitempty"`
}

// GeneratedContent is the tagged union of every completion payload.
// Exactly one section is populated, selected by the request type.
type GeneratedContent struct {
	Services     []ServiceItem       `json:"services,omitempty"`
	Hero         *HeroBlock          `json:"hero,omitempty"`
	About        *AboutBlock         `json:"about,omitempty"`
	Testimonials []Testimonial       `json:"testimonials,omitempty"`
	FAQs         []FAQItem           `json:"faqs,omitempty"`
	SEO          *SEOBlock           `json:"seo,omitempty"`
	Images       map[string]ImageRef `json:"images,omitempty"`
}

// SessionContent is the wizard-session document completed results are merged into.
// It shares the section layout of GeneratedContent, holding every section at once.
type SessionContent GeneratedContent

// ParseContent decodes doc and checks the section required by rt.
// The check is structural only: required keys present and non-blank.
// Parameters:
//   - rt: request type the content was produced for.
//   - doc: raw completion payload.
// Returns:
//   - *GeneratedContent: decoded payload.
//   - error: *ValidationError when the payload is missing or malformed.
func ParseContent(rt RequestType, doc Document) (*GeneratedContent, error) {
	if doc.IsEmpty() {
		return nil, NewValidationError("generated_content", "is required")
	}
	if !doc.IsObject() {
		return nil, NewValidationError("generated_content", "must be a JSON object")
	}

	var content GeneratedContent
	if err := json.Unmarshal(doc, &content); err != nil {
		return nil, NewValidationError("generated_content", "does not match %s shape: %v", rt, err)
	}

	if err := validateSection(rt, &content); err != nil {
		return nil, err
	}
	return &content, nil
}

// ValidateContent reports whether doc is a structurally valid payload for rt.
func ValidateContent(rt RequestType, doc Document) error {
	_, err := ParseContent(rt, doc)
	return err
}

func validateSection(rt RequestType, c *GeneratedContent) error {
	switch rt {
	case RequestTypeServices:
		if len(c.Services) == 0 {
			return NewValidationError("generated_content.services", "must list at least one service")
		}
		for i, s := range c.Services {
			if blank(s.Name) || blank(s.Description) {
				return NewValidationError(fmt.Sprintf("generated_content.services[%d]", i), "name and description are required")
			}
		}
	case RequestTypeHero:
		if c.Hero == nil || blank(c.Hero.Headline) {
			return NewValidationError("generated_content.hero.headline", "is required")
		}
	case RequestTypeAbout:
		if c.About == nil || blank(c.About.Content) {
			return NewValidationError("generated_content.about.content", "is required")
		}
	case RequestTypeTestimonials:
		if len(c.Testimonials) == 0 {
			return NewValidationError("generated_content.testimonials", "must list at least one testimonial")
		}
		for i, t := range c.Testimonials {
			if blank(t.Author) || blank(t.Quote) {
				return NewValidationError(fmt.Sprintf("generated_content.testimonials[%d]", i), "author and quote are required")
			}
		}
	case RequestTypeFAQ:
		if len(c.FAQs) == 0 {
			return NewValidationError("generated_content.faqs", "must list at least one question")
		}
		for i, f := range c.FAQs {
			if blank(f.Question) || blank(f.Answer) {
				return NewValidationError(fmt.Sprintf("generated_content.faqs[%d]", i), "question and answer are required")
			}
		}
	case RequestTypeSEO:
		if c.SEO == nil || blank(c.SEO.Title) || blank(c.SEO.Description) {
			return NewValidationError("generated_content.seo", "title and description are required")
		}
	case RequestTypeImages:
		if len(c.Images) == 0 {
			return NewValidationError("generated_content.images", "must name at least one image")
		}
		for name, img := range c.Images {
			if blank(name) || blank(img.URL) {
				return NewValidationError("generated_content.images."+name, "url is required")
			}
		}
	default:
		return NewValidationError("request_type", "unknown type %q", rt)
	}
	return nil
}

// ApplyContent merges a completed payload into the session document.
// This switch is the single mapping from request type to session section.
func ApplyContent(session *SessionContent, rt RequestType, c *GeneratedContent) error {
	switch rt {
	case RequestTypeServices:
		session.Services = c.Services
	case RequestTypeHero:
		session.Hero = c.Hero
	case RequestTypeAbout:
		session.About = c.About
	case RequestTypeTestimonials:
		session.Testimonials = c.Testimonials
	case RequestTypeFAQ:
		session.FAQs = c.FAQs
	case RequestTypeSEO:
		session.SEO = c.SEO
	case RequestTypeImages:
		// image sets accumulate across requests, later names win
		if session.Images == nil {
			session.Images = make(map[string]ImageRef, len(c.Images))
		}
		for name, img := range c.Images {
			session.Images[name] = img
		}
	default:
		return NewValidationError("request_type", "unknown type %q", rt)
	}
	return nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
