package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// VocabularyChanged is true when any keyword entry or video source list
	// changed. New sessions pick up the rebuilt table; live sessions keep the
	// table they started with.
	VocabularyChanged bool

	// SessionChanged is true when the capture delay changed.
	SessionChanged bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if vocabChanged(old, new) {
		d.VocabularyChanged = true
	}

	if old.Session.CaptureDelay != new.Session.CaptureDelay {
		d.SessionChanged = true
	}

	return d
}

// vocabChanged compares keyword entries and video source lists.
func vocabChanged(old, new *Config) bool {
	if len(old.Vocabulary) != len(new.Vocabulary) {
		return true
	}
	for i := range old.Vocabulary {
		if old.Vocabulary[i] != new.Vocabulary[i] {
			return true
		}
	}

	if len(old.Videos) != len(new.Videos) {
		return true
	}
	for sign, oldSrcs := range old.Videos {
		newSrcs, ok := new.Videos[sign]
		if !ok || len(oldSrcs) != len(newSrcs) {
			return true
		}
		for i := range oldSrcs {
			if oldSrcs[i] != newSrcs[i] {
				return true
			}
		}
	}
	return false
}
