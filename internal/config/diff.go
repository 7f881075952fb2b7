package config

import "fmt"

// ConfigDiff describes what changed between two configs.
// Only the classification tunables, the phonetic settings and the log level
// can be hot-reloaded; every other change is listed in Ignored and requires
// a restart.
type ConfigDiff struct {
	// ClassifyChanged is true when any classify tunable differs.
	ClassifyChanged bool

	// PhoneticChanged is true when the phonetic matcher settings differ.
	PhoneticChanged bool

	LogLevelChanged bool
	NewLogLevel     LogLevel

	// Ignored lists changed fields that cannot be applied without restart.
	Ignored []string
}

// Empty reports whether the diff carries no change at all.
func (d ConfigDiff) Empty() bool {
	return !d.ClassifyChanged && !d.PhoneticChanged && !d.LogLevelChanged && len(d.Ignored) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Classify != new.Classify {
		d.ClassifyChanged = true
	}
	if !equalVariants(old.Phonetic.ExtraVariants, new.Phonetic.ExtraVariants) ||
		old.Phonetic.MaxCodeDistance != new.Phonetic.MaxCodeDistance {
		d.PhoneticChanged = true
	}

	// Everything below needs a restart to take effect.
	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.Ignored = append(d.Ignored, "server.listen_addr")
	}
	if old.Server.RateLimitPerMin != new.Server.RateLimitPerMin {
		d.Ignored = append(d.Ignored, "server.rate_limit_per_min")
	}
	if !equalTLS(old.Server.TLS, new.Server.TLS) {
		d.Ignored = append(d.Ignored, "server.tls")
	}
	if old.Store != new.Store {
		d.Ignored = append(d.Ignored, "store")
	}
	if old.Feedback != new.Feedback {
		d.Ignored = append(d.Ignored, "feedback")
	}

	return d
}

// String summarises the diff for logs.
func (d ConfigDiff) String() string {
	return fmt.Sprintf("classify=%t phonetic=%t log_level=%t ignored=%v",
		d.ClassifyChanged, d.PhoneticChanged, d.LogLevelChanged, d.Ignored)
}

func equalTLS(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalVariants(a, b map[string][]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
	}
	return true
}
