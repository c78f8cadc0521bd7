package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/sitequeue/internal/domain"
	"github.com/timmy/sitequeue/internal/logger"
	"github.com/timmy/sitequeue/internal/metrics"
	"github.com/timmy/sitequeue/internal/prompts"
)

// ErrGenerationDisabled is returned when no draft provider is configured.
var ErrGenerationDisabled = errors.New("AI draft generation is not configured")

// GenerationService asks an OpenAI-compatible chat completion API for content drafts.
// Drafts are returned to the operator, never stored.
type GenerationService struct {
	client          *resty.Client
	store           RequestStore
	model           string
	endpoint        string
	maxTokens       int
	costPer1KTokens float64
	enabled         bool
}

// GenerationConfig holds configuration for the generation service.
type GenerationConfig struct {
	Enabled         bool
	Model           string
	APIKey          string
	BaseURL         string
	Timeout         time.Duration
	MaxTokens       int
	CostPer1KTokens float64
}

// NewGenerationService creates a new generation service.
// Parameters:
//   - store: request store used to load the request being drafted.
//   - cfg: provider configuration; a missing API key disables the service.
// Returns:
//   - *GenerationService: initialized client wrapper.
func NewGenerationService(store RequestStore, cfg *GenerationConfig) *GenerationService {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client.SetTimeout(timeout)

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1200
	}

	return &GenerationService{
		client:          client,
		store:           store,
		model:           cfg.Model,
		endpoint:        baseURL + "/chat/completions",
		maxTokens:       maxTokens,
		costPer1KTokens: cfg.CostPer1KTokens,
		enabled:         cfg.Enabled && cfg.APIKey != "",
	}
}

// Enabled reports whether drafts can be requested.
func (s *GenerationService) Enabled() bool {
	return s.enabled
}

// OpenAI-compatible Chat Completion API request/response structures
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Draft is a model-generated content proposal for a request.
type Draft struct {
	RequestID        string          `json:"request_id"`
	Model            string          `json:"model"`
	GeneratedContent domain.Document `json:"generated_content"`
	Valid            bool            `json:"valid"`
	ValidationError  string          `json:"validation_error,omitempty"`
	TotalTokens      int             `json:"total_tokens"`
	EstimatedCost    float64         `json:"estimated_cost"`
}

// GenerateDraft asks the model for content matching the request's type.
// Only the operator holding a processing request may ask.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: request ID.
//   - adminID: operator holding the request.
// Returns:
//   - *Draft: the proposal and whether it passes content validation.
//   - error: ErrGenerationDisabled, a guard error, or a provider failure.
func (s *GenerationService) GenerateDraft(ctx context.Context, id, adminID string) (*Draft, error) {
	if !s.enabled {
		return nil, ErrGenerationDisabled
	}
	if err := requireOperator(adminID); err != nil {
		return nil, err
	}
	req, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.StatusProcessing {
		return nil, &domain.InvalidTransitionError{
			RequestID: req.ID, From: req.Status, To: domain.StatusCompleted,
			Reason: "drafts are only available while processing",
		}
	}
	if req.HolderID() != adminID {
		return nil, &domain.NotAuthorizedError{RequestID: req.ID, AdminID: adminID, HolderID: req.HolderID()}
	}

	userPrompt, err := prompts.DraftUserPrompt(prompts.Brief{
		RequestType:  string(req.RequestType),
		BusinessType: req.BusinessType,
		Terminology:  req.Terminology,
		RequestData:  req.RequestData,
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	content, tokens, err := s.complete(ctx, userPrompt)
	if err != nil {
		metrics.DraftGenerations.WithLabelValues(string(req.RequestType), "error").Inc()
		return nil, err
	}

	draft := &Draft{
		RequestID:        req.ID,
		Model:            s.model,
		GeneratedContent: domain.Document(content),
		TotalTokens:      tokens,
		EstimatedCost:    float64(tokens) / 1000 * s.costPer1KTokens,
	}
	if verr := domain.ValidateContent(req.RequestType, draft.GeneratedContent); verr != nil {
		draft.ValidationError = verr.Error()
	} else {
		draft.Valid = true
	}

	metrics.DraftGenerations.WithLabelValues(string(req.RequestType), "success").Inc()
	logger.With(logger.Fields{
		logger.FieldAIRequestID: req.ID,
		logger.FieldAdminID:     adminID,
		"tokens":                tokens,
		"valid":                 draft.Valid,
	}).WithDuration(time.Since(start).Milliseconds()).Info(ctx, "Draft generated")
	return draft, nil
}

func (s *GenerationService) complete(ctx context.Context, userPrompt string) ([]byte, int, error) {
	body := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: prompts.DraftSystemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:      s.maxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	var resp chatResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&resp).
		SetError(&resp).
		Post(s.endpoint)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to call generation API: %w", err)
	}

	if httpResp.IsError() {
		msg := string(httpResp.Body())
		if resp.Error != nil {
			msg = resp.Error.Message
		}
		return nil, 0, fmt.Errorf("generation API returned HTTP %d: %s", httpResp.StatusCode(), msg)
	}
	if resp.Error != nil {
		return nil, 0, fmt.Errorf("generation API error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return nil, 0, fmt.Errorf("no choices in generation response")
	}

	content, err := extractJSONObject(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, 0, err
	}
	return content, resp.Usage.TotalTokens, nil
}

// extractJSONObject strips markdown fences or prose around the first JSON object.
func extractJSONObject(text string) ([]byte, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("generation response holds no JSON object")
	}
	raw := []byte(text[start : end+1])
	if !json.Valid(raw) {
		return nil, fmt.Errorf("generation response is not valid JSON")
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return nil, fmt.Errorf("compact generation response: %w", err)
	}
	return compact.Bytes(), nil
}
