package prompts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"unicode"
)

// ============================================================================
// Draft Generation Prompts
// ============================================================================

// DraftSystemPrompt defines the role and output rules for AI content drafts.
const DraftSystemPrompt = `You are a senior website copywriter for small businesses.
You write clear, concrete, friendly copy in the customer's own terminology.

Rules:
- Answer with ONE JSON object and nothing else: no markdown fences, no commentary.
- Use exactly the JSON shape given in the task. Do not add keys.
- Never invent prices, awards, certifications or customer names that are not in the brief.
- Keep every string plain text (no HTML, no emoji).`

// sectionTasks holds the task text and expected JSON shape per request type.
var sectionTasks = map[string]string{
	"SERVICES": `Write 3 to 6 services the business offers.
Shape: {"services":[{"name":"...","description":"1-2 sentences","price":"optional, only if given in the brief"}]}`,

	"HERO": `Write the hero block at the top of the home page.
Shape: {"hero":{"headline":"max 8 words","subheadline":"one sentence","cta_text":"2-4 words"}}`,

	"ABOUT": `Write the "About us" section.
Shape: {"about":{"title":"short title","content":"2 short paragraphs separated by \n\n"}}`,

	"TESTIMONIALS": `Write 3 placeholder testimonials the owner will replace with real ones.
Use generic authors such as "A happy client".
Shape: {"testimonials":[{"author":"...","role":"optional","quote":"1-2 sentences"}]}`,

	"FAQ": `Write 5 frequently asked questions with answers.
Shape: {"faqs":[{"question":"...","answer":"1-3 sentences"}]}`,

	"SEO": `Write the page title, meta description and keywords.
Shape: {"seo":{"title":"max 60 characters","description":"max 155 characters","keywords":["5 to 10 keywords"]}}`,

	"IMAGES": `Describe the images the site needs; an operator will source or generate them.
Use the image name as key (hero, about, gallery_1, ...) and put a short description in "alt".
Shape: {"images":{"hero":{"url":"","alt":"..."}}}`,
}

// ============================================================================
// Operator Prompt
// ============================================================================

// Brief is the request context a prompt is rendered from.
type Brief struct {
	RequestType  string
	BusinessType string
	Terminology  string
	RequestData  []byte // raw JSON object as submitted
}

type briefField struct {
	Label string
	Value string
}

var operatorTemplate = template.Must(template.New("operator").Parse(
	`Task: {{.Task}}

Business type: {{if .BusinessType}}{{.BusinessType}}{{else}}not specified{{end}}
{{- if .Terminology}}
Preferred terminology: {{.Terminology}}{{end}}
{{- if .Fields}}

Customer brief:
{{- range .Fields}}
- {{.Label}}: {{.Value}}{{end}}{{end}}
`))

// Render formats the human-readable prompt operators see for a request.
// Parameters:
//   - b: request type, business context and the submitted request data.
// Returns:
//   - string: rendered prompt.
//   - error: non-nil if the request type is unknown or the data is not a JSON object.
func Render(b Brief) (string, error) {
	task, ok := sectionTasks[strings.ToUpper(b.RequestType)]
	if !ok {
		return "", fmt.Errorf("no prompt for request type %q", b.RequestType)
	}
	fields, err := flatten(b.RequestData)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := operatorTemplate.Execute(&buf, struct {
		Brief
		Task   string
		Fields []briefField
	}{Brief: b, Task: task, Fields: fields}); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}

// DraftUserPrompt is the user message sent to the model for a draft.
func DraftUserPrompt(b Brief) (string, error) {
	rendered, err := Render(b)
	if err != nil {
		return "", err
	}
	return rendered + "\nReturn only the JSON object.", nil
}

// flatten turns the request data object into sorted, labelled lines.
func flatten(raw []byte) ([]briefField, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, nil
	}
	var data map[string]interface{}
	if err := json.Unmarshal(trimmed, &data); err != nil {
		return nil, fmt.Errorf("request data is not a JSON object: %w", err)
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]briefField, 0, len(keys))
	for _, k := range keys {
		v := formatValue(data[k])
		if v == "" {
			continue
		}
		fields = append(fields, briefField{Label: Humanize(k), Value: v})
	}
	return fields, nil
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := formatValue(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]interface{}:
		b, _ := json.Marshal(val)
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}

// Humanize turns siteName, site_name or site-name into "Site name".
func Humanize(key string) string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	for i, r := range key {
		switch {
		case r == '_' || r == '-' || r == ' ':
			flush()
		case unicode.IsUpper(r) && i > 0:
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	if len(words) == 0 {
		return key
	}
	label := strings.Join(words, " ")
	r := []rune(label)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
