package estimator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout is the default timeout for API calls
	DefaultTimeout = 30 * time.Second

	// ErrNoChoicesInResponse is returned when the API response has no choices
	ErrNoChoicesInResponse = "no choices in response"

	systemPrompt = "You estimate how long personal tasks take. Respond with valid JSON only."
)

// OpenAIEstimator asks a chat model how many minutes a task needs
type OpenAIEstimator struct {
	client    openai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
}

// OpenAIConfig holds the settings for NewOpenAIEstimator
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	Logger    *zap.Logger
	DebugMode bool
}

// NewOpenAIEstimator creates an estimator backed by the OpenAI chat completions API.
// Extra request options are appended after the defaults.
func NewOpenAIEstimator(cfg OpenAIConfig, extra ...option.RequestOption) *OpenAIEstimator {
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(&http.Client{Timeout: DefaultTimeout}),
	}
	opts = append(opts, extra...)

	return &OpenAIEstimator{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		logger:    cfg.Logger,
		debugMode: cfg.DebugMode,
	}
}

// EstimateMinutes implements Estimator. A null or non-positive answer is unknown.
func (e *OpenAIEstimator) EstimateMinutes(ctx context.Context, description string) (int, bool, error) {
	prompt := buildEstimatePrompt(description)
	req := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	requestID := ExtractRequestID(ctx)
	if e.debugMode {
		e.logger.Debug("llm_api_request",
			zap.String("operation", "estimate_duration"),
			zap.String("model", e.model),
			zap.Int("prompt_length", len(prompt)),
			zap.String("prompt_preview", SanitizePrompt(prompt, false)),
			zap.String("request_id", requestID),
		)
	}

	start := time.Now()
	resp, err := e.client.Chat.Completions.New(ctx, req)
	latency := time.Since(start)
	if err != nil {
		if e.debugMode {
			e.logger.Debug("llm_api_error",
				zap.String("operation", "estimate_duration"),
				zap.String("model", e.model),
				zap.Error(err),
				zap.String("request_id", requestID),
				zap.Int64("latency_ms", latency.Milliseconds()),
			)
		}
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return 0, false, fmt.Errorf("failed to estimate duration: %w", apiErr)
		}
		return 0, false, fmt.Errorf("failed to estimate duration: %w", err)
	}
	if len(resp.Choices) == 0 {
		return 0, false, errors.New(ErrNoChoicesInResponse)
	}

	content := resp.Choices[0].Message.Content
	if e.debugMode {
		e.logger.Debug("llm_api_response",
			zap.String("operation", "estimate_duration"),
			zap.String("model", e.model),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", SanitizeResponse(content, true)),
			zap.String("request_id", requestID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}

	minutes, ok, err := parseEstimateResponse(content)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		e.logger.Debug("estimate_unknown",
			zap.String("estimator", "openai"),
			zap.String("model", e.model),
		)
	}
	return minutes, ok, nil
}

func buildEstimatePrompt(description string) string {
	return fmt.Sprintf(`Estimate how many minutes of preparation or work the following task needs.

Task: "%s"

Respond with a JSON object in this format:
{
  "minutes": <integer number of minutes> | null
}

Use null if the task is too vague to estimate. Return only valid JSON.`, SanitizePrompt(description, false))
}

// parseEstimateResponse decodes {"minutes": n|null}, tolerating text around the object
func parseEstimateResponse(content string) (int, bool, error) {
	var answer struct {
		Minutes *float64 `json:"minutes"`
	}
	raw := strings.TrimSpace(content)
	if err := json.Unmarshal([]byte(raw), &answer); err != nil {
		start := bytes.IndexByte([]byte(raw), '{')
		end := bytes.LastIndexByte([]byte(raw), '}')
		if start == -1 || end <= start {
			return 0, false, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		if err := json.Unmarshal([]byte(raw[start:end+1]), &answer); err != nil {
			return 0, false, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
	}
	if answer.Minutes == nil || *answer.Minutes <= 0 {
		return 0, false, nil
	}
	return int(*answer.Minutes + 0.5), true, nil
}

// RegisterDefaults registers the keyword, openai and chain estimators.
// The openai and chain factories read "api_key", "base_url" and "model".
func RegisterDefaults(registry *Registry, logger *zap.Logger) {
	registry.Register("keyword", func(map[string]string) (Estimator, error) {
		return NewKeywordEstimator(logger), nil
	})
	registry.Register("openai", func(config map[string]string) (Estimator, error) {
		return newOpenAIFromConfig(config, logger)
	})
	registry.Register("chain", func(config map[string]string) (Estimator, error) {
		oai, err := newOpenAIFromConfig(config, logger)
		if err != nil {
			return nil, err
		}
		return NewChainEstimator(NewKeywordEstimator(logger), oai), nil
	})
}

func newOpenAIFromConfig(config map[string]string, logger *zap.Logger) (*OpenAIEstimator, error) {
	apiKey := config["api_key"]
	if apiKey == "" {
		return nil, fmt.Errorf("openai api_key is required")
	}
	return NewOpenAIEstimator(OpenAIConfig{
		APIKey:    apiKey,
		BaseURL:   config["base_url"],
		Model:     config["model"],
		Logger:    logger,
		DebugMode: config["debug"] == "true",
	}), nil
}
