package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/junghee-19/SignLink/pkg/provider/translate"
)

// ErrTranslatorNotRegistered is returned by [Registry.CreateTranslator] when
// no factory has been registered under the requested name.
var ErrTranslatorNotRegistered = errors.New("config: translator not registered")

// Registry maps translator names to their constructor functions.
// It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	translators map[string]func(TranslatorConfig) (translate.Translator, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		translators: make(map[string]func(TranslatorConfig) (translate.Translator, error)),
	}
}

// RegisterTranslator registers a translator factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterTranslator(name string, factory func(TranslatorConfig) (translate.Translator, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.translators[name] = factory
}

// CreateTranslator instantiates a translator using the factory registered
// under cfg.Name. Returns [ErrTranslatorNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateTranslator(cfg TranslatorConfig) (translate.Translator, error) {
	r.mu.RLock()
	factory, ok := r.translators[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTranslatorNotRegistered, cfg.Name)
	}
	return factory(cfg)
}

// Names returns the registered translator names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.translators))
	for name := range r.translators {
		names = append(names, name)
	}
	return names
}
