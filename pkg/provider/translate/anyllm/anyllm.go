// Package anyllm provides a universal translation backend backed by
// github.com/mozilla-ai/any-llm-go, a unified multi-provider interface that
// supports OpenAI, Gemini, Ollama, Anthropic, DeepSeek, Mistral, and more.
//
// Usage:
//
//	t, err := anyllm.New("gemini", "gemini-2.0-flash", anyllmlib.WithAPIKey("..."))
//	reply, err := t.TextToSign(ctx, "안녕하세요")
package anyllm

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/junghee-19/SignLink/pkg/provider/translate"
)

// Compile-time interface assertion.
var _ translate.Translator = (*Translator)(nil)

// Default system prompts for the two translation directions. The sign-to-text
// prompt receives the pose service's gesture description; the text-to-sign
// prompt receives the user's typed chat text.
const (
	defaultSignToTextPrompt = "You are a Korean Sign Language interpreter. " +
		"The user message describes a gesture recognized from a webcam. " +
		"Reply with one short, natural Korean sentence the signer is most " +
		"likely expressing. Reply with the sentence only."

	defaultTextToSignPrompt = "You are a Korean Sign Language coach. " +
		"Given a Korean sentence, describe in one short Korean sentence how " +
		"to sign it (hand shape and movement). Reply with the description only."
)

// Translator implements translate.Translator by wrapping any-llm-go.
type Translator struct {
	backend          anyllmlib.Provider
	model            string
	signToTextPrompt string
	textToSignPrompt string
}

// Option is a functional option for configuring a Translator.
type Option func(*Translator)

// WithSignToTextPrompt overrides the system prompt used for the
// sign-to-text direction.
func WithSignToTextPrompt(prompt string) Option {
	return func(t *Translator) {
		t.signToTextPrompt = prompt
	}
}

// WithTextToSignPrompt overrides the system prompt used for the
// text-to-sign direction.
func WithTextToSignPrompt(prompt string) Option {
	return func(t *Translator) {
		t.textToSignPrompt = prompt
	}
}

// New creates a Translator backed by the given LLM provider name.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama",
// "deepseek", "mistral", "groq". model selects the specific model (e.g.
// "gemini-2.0-flash"). llmOpts are any-llm-go options such as
// anyllmlib.WithAPIKey and anyllmlib.WithBaseURL; without an API key option
// the backend falls back to its usual environment variable
// (GEMINI_API_KEY, OPENAI_API_KEY, ...).
func New(providerName, model string, llmOpts []anyllmlib.Option, opts ...Option) (*Translator, error) {
	if providerName == "" {
		return nil, fmt.Errorf("anyllm: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	backend, err := createBackend(providerName, llmOpts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", providerName, err)
	}

	t := &Translator{
		backend:          backend,
		model:            model,
		signToTextPrompt: defaultSignToTextPrompt,
		textToSignPrompt: defaultTextToSignPrompt,
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// createBackend creates the underlying any-llm-go provider for the given name.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq", providerName)
	}
}

// SignToText implements translate.Translator.
func (t *Translator) SignToText(ctx context.Context, gesture string) (string, error) {
	return t.complete(ctx, t.signToTextPrompt, gesture)
}

// TextToSign implements translate.Translator.
func (t *Translator) TextToSign(ctx context.Context, text string) (string, error) {
	return t.complete(ctx, t.textToSignPrompt, text)
}

// complete performs a single non-streaming completion with the given system
// prompt and user message and returns the trimmed reply text.
func (t *Translator) complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	params := anyllmlib.CompletionParams{
		Model: t.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: systemPrompt},
			{Role: anyllmlib.RoleUser, Content: userText},
		},
	}

	resp, err := t.backend.Completion(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("anyllm: empty choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.ContentString()), nil
}
