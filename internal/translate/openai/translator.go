// Package openai provides a translator backed by the OpenAI chat API.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"call-translation-service/internal/translate"
)

// temperature is kept low on purpose: consistency across a single
// conversation matters more than creative phrasing.
const temperature = 0.1

// Translator implements translate.Translator using the OpenAI API.
type Translator struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the translator.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Translator.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// Compile-time interface check.
var _ translate.Translator = (*Translator)(nil)

// New constructs a new OpenAI-backed Translator.
func New(apiKey, model string, opts ...Option) (*Translator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Translator{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Translate implements translate.Translator.
func (t *Translator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	system := fmt.Sprintf(
		"You are a translation engine for live call transcripts. Translate the user message from %s to %s. "+
			"Reply with the translation only, no commentary, no quotes.",
		sourceLang, targetLang,
	)

	resp, err := t.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model:       shared.ChatModel(t.model),
		Temperature: oai.Float(temperature),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(system),
			oai.UserMessage(text),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai: translate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: translate: empty response")
	}

	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("openai: translate: empty completion")
	}
	return out, nil
}
