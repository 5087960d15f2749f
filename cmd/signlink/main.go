// Command signlink is the main entry point for the SignLink chat server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/junghee-19/SignLink/internal/app"
	"github.com/junghee-19/SignLink/internal/config"
	"github.com/junghee-19/SignLink/internal/observe"
	"github.com/junghee-19/SignLink/internal/resilience"
	"github.com/junghee-19/SignLink/pkg/provider/translate"
	"github.com/junghee-19/SignLink/pkg/provider/translate/anyllm"
	oatranslate "github.com/junghee-19/SignLink/pkg/provider/translate/openai"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "signlink: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "signlink: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// A LevelVar so the hot-reload watcher can change verbosity at runtime.
	logLevel := new(slog.LevelVar)
	logLevel.Set(cfg.Server.LogLevel.SlogLevel())
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("signlink starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "signlink",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Translator ────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinTranslators(reg)

	translator, err := buildTranslator(cfg.Translator, reg)
	if err != nil {
		slog.Error("failed to create translator",
			"name", cfg.Translator.Name,
			"known", reg.Names(),
			"err", err,
		)
		return 1
	}
	slog.Info("translator created",
		"name", cfg.Translator.Name,
		"model", cfg.Translator.Model,
		"fallbacks", len(cfg.Translator.Fallbacks),
	)

	// ── Application ───────────────────────────────────────────────────────────
	application, err := app.New(ctx, cfg, translator)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			logLevel.Set(d.NewLogLevel.SlogLevel())
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.VocabularyChanged || d.SessionChanged {
			if err := application.Reload(new); err != nil {
				slog.Warn("config reload not applied", "err", err)
			}
		}
	})
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}
	defer watcher.Stop()

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Translator wiring ─────────────────────────────────────────────────────────

// buildTranslator instantiates the configured translator. When fallbacks are
// configured, the result is a failover chain with per-backend circuit
// breakers.
func buildTranslator(cfg config.TranslatorConfig, reg *config.Registry) (translate.Translator, error) {
	primary, err := reg.CreateTranslator(cfg)
	if err != nil {
		return nil, err
	}
	if len(cfg.Fallbacks) == 0 {
		return primary, nil
	}

	chain := resilience.NewTranslatorFallback(primary, cfg.Name, resilience.FallbackConfig{})
	for _, fb := range cfg.Fallbacks {
		t, err := reg.CreateTranslator(fb)
		if err != nil {
			return nil, fmt.Errorf("fallback %q: %w", fb.Name, err)
		}
		chain.AddFallback(fb.Name, t)
	}
	return chain, nil
}

// registerBuiltinTranslators wires all built-in translator factories into reg.
func registerBuiltinTranslators(reg *config.Registry) {
	// openai, anthropic, gemini, deepseek, mistral and groq all share the same
	// pattern: optional APIKey + optional BaseURL, routed through any-llm-go.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini", "deepseek", "mistral", "groq",
	} {
		reg.RegisterTranslator(providerName, func(entry config.TranslatorConfig) (translate.Translator, error) {
			var llmOpts []anyllmlib.Option
			if entry.APIKey != "" {
				llmOpts = append(llmOpts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				llmOpts = append(llmOpts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, llmOpts, anyllmPromptOptions(entry)...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterTranslator("ollama", func(entry config.TranslatorConfig) (translate.Translator, error) {
		var llmOpts []anyllmlib.Option
		if entry.BaseURL != "" {
			llmOpts = append(llmOpts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, llmOpts, anyllmPromptOptions(entry)...)
	})

	// openai-direct bypasses any-llm-go and talks to the OpenAI API via the
	// official SDK.
	reg.RegisterTranslator("openai-direct", func(entry config.TranslatorConfig) (translate.Translator, error) {
		var opts []oatranslate.Option
		if entry.BaseURL != "" {
			opts = append(opts, oatranslate.WithBaseURL(entry.BaseURL))
		}
		if p := optString(entry.Options, "sign_to_text_prompt"); p != "" {
			opts = append(opts, oatranslate.WithSignToTextPrompt(p))
		}
		if p := optString(entry.Options, "text_to_sign_prompt"); p != "" {
			opts = append(opts, oatranslate.WithTextToSignPrompt(p))
		}
		return oatranslate.New(entry.APIKey, entry.Model, opts...)
	})

	for _, name := range reg.Names() {
		slog.Debug("registered translator", "name", name)
	}
}

// anyllmPromptOptions maps optional prompt overrides from the translator
// Options map onto anyllm options.
func anyllmPromptOptions(entry config.TranslatorConfig) []anyllm.Option {
	var opts []anyllm.Option
	if p := optString(entry.Options, "sign_to_text_prompt"); p != "" {
		opts = append(opts, anyllm.WithSignToTextPrompt(p))
	}
	if p := optString(entry.Options, "text_to_sign_prompt"); p != "" {
		opts = append(opts, anyllm.WithTextToSignPrompt(p))
	}
	return opts
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a translator Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
