package resilience

import (
	"context"

	"github.com/junghee-19/SignLink/pkg/provider/translate"
)

// TranslatorFallback implements [translate.Translator] with automatic failover
// across multiple LLM backends. Each backend has its own circuit breaker; when
// the primary fails or its breaker is open, the next healthy fallback is tried.
type TranslatorFallback struct {
	group *FallbackGroup[translate.Translator]
}

// Compile-time interface assertion.
var _ translate.Translator = (*TranslatorFallback)(nil)

// NewTranslatorFallback creates a [TranslatorFallback] with primary as the
// preferred backend.
func NewTranslatorFallback(primary translate.Translator, primaryName string, cfg FallbackConfig) *TranslatorFallback {
	return &TranslatorFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional translation backend as a fallback.
func (f *TranslatorFallback) AddFallback(name string, t translate.Translator) {
	f.group.AddFallback(name, t)
}

// SignToText sends the gesture description to the first healthy backend and
// returns its reply. If the primary fails, subsequent fallbacks are tried.
func (f *TranslatorFallback) SignToText(ctx context.Context, gesture string) (string, error) {
	return ExecuteWithResult(f.group, func(t translate.Translator) (string, error) {
		return t.SignToText(ctx, gesture)
	})
}

// TextToSign sends the chat text to the first healthy backend and returns its
// sign-language caption.
func (f *TranslatorFallback) TextToSign(ctx context.Context, text string) (string, error) {
	return ExecuteWithResult(f.group, func(t translate.Translator) (string, error) {
		return t.TextToSign(ctx, text)
	})
}
