// Package mock provides a test double for the translate.Translator interface.
//
// Use Translator in unit tests to feed controlled replies into the session
// controller without a live LLM backend.
//
// Example:
//
//	tr := &mock.Translator{SignToTextReply: "안녕하세요!"}
//	reply, err := tr.SignToText(ctx, "기타")
package mock

import (
	"context"
	"sync"

	"github.com/junghee-19/SignLink/pkg/provider/translate"
)

// Call records a single translation invocation.
type Call struct {
	// Ctx is the context passed to the method.
	Ctx context.Context
	// Input is the gesture description or chat text passed in.
	Input string
}

// Translator is a mock implementation of translate.Translator.
// Zero values cause methods to return empty strings and nil errors.
// Set the Err fields to inject failures.
type Translator struct {
	mu sync.Mutex

	// SignToTextReply is returned by SignToText.
	SignToTextReply string
	// SignToTextErr, if non-nil, is returned by SignToText.
	SignToTextErr error

	// TextToSignReply is returned by TextToSign.
	TextToSignReply string
	// TextToSignErr, if non-nil, is returned by TextToSign.
	TextToSignErr error

	// SignToTextCalls records every SignToText invocation in order.
	SignToTextCalls []Call
	// TextToSignCalls records every TextToSign invocation in order.
	TextToSignCalls []Call
}

// SignToText records the call and returns SignToTextReply, SignToTextErr.
func (t *Translator) SignToText(ctx context.Context, gesture string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.SignToTextCalls = append(t.SignToTextCalls, Call{Ctx: ctx, Input: gesture})
	return t.SignToTextReply, t.SignToTextErr
}

// TextToSign records the call and returns TextToSignReply, TextToSignErr.
func (t *Translator) TextToSign(ctx context.Context, text string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.TextToSignCalls = append(t.TextToSignCalls, Call{Ctx: ctx, Input: text})
	return t.TextToSignReply, t.TextToSignErr
}

// Reset clears all recorded calls. Thread-safe.
func (t *Translator) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.SignToTextCalls = nil
	t.TextToSignCalls = nil
}

// Ensure Translator implements translate.Translator at compile time.
var _ translate.Translator = (*Translator)(nil)
