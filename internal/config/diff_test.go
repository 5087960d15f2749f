package config_test

import (
	"testing"
	"time"

	"github.com/junghee-19/SignLink/internal/config"
	"github.com/junghee-19/SignLink/internal/vocab"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Session: config.SessionConfig{
			CaptureDelay: 2 * time.Second,
		},
		Vocabulary: []vocab.Entry{
			{Keyword: "안녕하세요", Sign: "hello"},
		},
		Videos: map[string][]vocab.Source{
			"hello": {{URL: "/assets/signs/hello.webm", Type: "video/webm"}},
		},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()

	d := config.Diff(old, new)
	if d.LogLevelChanged || d.VocabularyChanged || d.SessionChanged {
		t.Errorf("Diff = %+v, want no changes", d)
	}
}

func TestDiff_LogLevel(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("Diff = %+v, want log level change to debug", d)
	}
}

func TestDiff_Vocabulary(t *testing.T) {
	t.Parallel()

	t.Run("entry added", func(t *testing.T) {
		t.Parallel()
		old, new := baseConfig(), baseConfig()
		new.Vocabulary = append(new.Vocabulary, vocab.Entry{Keyword: "배부르네요", Sign: "full"})
		if d := config.Diff(old, new); !d.VocabularyChanged {
			t.Error("vocabulary addition not detected")
		}
	})

	t.Run("keyword edited", func(t *testing.T) {
		t.Parallel()
		old, new := baseConfig(), baseConfig()
		new.Vocabulary[0].Keyword = "안녕"
		if d := config.Diff(old, new); !d.VocabularyChanged {
			t.Error("keyword edit not detected")
		}
	})

	t.Run("video source changed", func(t *testing.T) {
		t.Parallel()
		old, new := baseConfig(), baseConfig()
		new.Videos["hello"] = []vocab.Source{{URL: "/assets/signs/hello.mp4", Type: "video/mp4"}}
		if d := config.Diff(old, new); !d.VocabularyChanged {
			t.Error("video source change not detected")
		}
	})

	t.Run("video sign removed", func(t *testing.T) {
		t.Parallel()
		old, new := baseConfig(), baseConfig()
		delete(new.Videos, "hello")
		if d := config.Diff(old, new); !d.VocabularyChanged {
			t.Error("video removal not detected")
		}
	})
}

func TestDiff_CaptureDelay(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()
	new.Session.CaptureDelay = 500 * time.Millisecond

	d := config.Diff(old, new)
	if !d.SessionChanged {
		t.Errorf("Diff = %+v, want session change", d)
	}
}
