// Package translate defines the Translator interface for generative-AI
// sign-language translation backends.
//
// A Translator converts between recognized sign/gesture descriptions and
// natural-language chat text. Implementations wrap a remote LLM API (e.g.
// Gemini via any-llm-go, or OpenAI directly) and expose two directions:
// sign-to-text for webcam captures and text-to-sign for typed messages.
//
// Backends may signal a soft failure by returning an error-prefixed reply
// string instead of a Go error; the session controller decides whether such
// replies are displayed. Implementors must be safe for concurrent use and
// must honour context cancellation.
package translate

import "context"

// Translator is the abstraction over any sign-language translation backend.
type Translator interface {
	// SignToText turns a recognized gesture description (the pose service's
	// output) into a natural chat reply addressed to the signer.
	SignToText(ctx context.Context, gesture string) (string, error)

	// TextToSign turns typed chat text into a short sign-language caption
	// describing how the utterance would be signed.
	TextToSign(ctx context.Context, text string) (string, error)
}
