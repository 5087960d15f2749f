// Package openai provides a translation backend that talks to the OpenAI
// chat completions API directly via github.com/openai/openai-go.
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

	"github.com/junghee-19/SignLink/pkg/provider/translate"
)

// Compile-time interface assertion.
var _ translate.Translator = (*Translator)(nil)

const (
	defaultSignToTextPrompt = "You are a Korean Sign Language interpreter. " +
		"The user message describes a gesture recognized from a webcam. " +
		"Reply with one short, natural Korean sentence the signer is most " +
		"likely expressing. Reply with the sentence only."

	defaultTextToSignPrompt = "You are a Korean Sign Language coach. " +
		"Given a Korean sentence, describe in one short Korean sentence how " +
		"to sign it (hand shape and movement). Reply with the description only."
)

// config holds optional configuration for the Translator.
type config struct {
	baseURL          string
	timeout          time.Duration
	signToTextPrompt string
	textToSignPrompt string
}

// Option is a functional option for Translator.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL. Useful for
// OpenAI-compatible gateways.
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

// WithSignToTextPrompt overrides the sign-to-text system prompt.
func WithSignToTextPrompt(prompt string) Option {
	return func(c *config) {
		c.signToTextPrompt = prompt
	}
}

// WithTextToSignPrompt overrides the text-to-sign system prompt.
func WithTextToSignPrompt(prompt string) Option {
	return func(c *config) {
		c.textToSignPrompt = prompt
	}
}

// Translator implements translate.Translator using the OpenAI API.
type Translator struct {
	client           oai.Client
	model            string
	signToTextPrompt string
	textToSignPrompt string
}

// New constructs a new OpenAI-backed Translator.
func New(apiKey, model string, opts ...Option) (*Translator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}

	cfg := &config{
		signToTextPrompt: defaultSignToTextPrompt,
		textToSignPrompt: defaultTextToSignPrompt,
	}
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

	return &Translator{
		client:           oai.NewClient(reqOpts...),
		model:            model,
		signToTextPrompt: cfg.signToTextPrompt,
		textToSignPrompt: cfg.textToSignPrompt,
	}, nil
}

// SignToText implements translate.Translator.
func (t *Translator) SignToText(ctx context.Context, gesture string) (string, error) {
	return t.complete(ctx, t.signToTextPrompt, gesture)
}

// TextToSign implements translate.Translator.
func (t *Translator) TextToSign(ctx context.Context, text string) (string, error) {
	return t.complete(ctx, t.textToSignPrompt, text)
}

// complete performs a single chat completion and returns the trimmed reply.
func (t *Translator) complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(t.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(systemPrompt),
			oai.UserMessage(userText),
		},
	}

	resp, err := t.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
