package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vocalaid/vocalaid/pkg/intent"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.RateLimitPerMin < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit_per_min %d is negative", cfg.Server.RateLimitPerMin))
	}
	if tls := cfg.Server.TLS; tls != nil {
		if tls.CertFile == "" || tls.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Store
	if !cfg.Store.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("store.backend %q is invalid; valid values: memory, postgres", cfg.Store.Backend))
	}
	if cfg.Store.Dimensions <= 0 {
		errs = append(errs, fmt.Errorf("store.dimensions %d must be positive", cfg.Store.Dimensions))
	}
	if cfg.Store.Backend == BackendPostgres && cfg.Store.PostgresDSN == "" {
		errs = append(errs, errors.New("store.postgres_dsn is required when store.backend is postgres"))
	}
	if cfg.Store.Backend == BackendMemory && cfg.Store.BootstrapPath == "" {
		slog.Warn("store.bootstrap_path is empty with the memory backend; the classifier starts cold and loses feedback on restart")
	}

	// Classify tunables
	cl := cfg.Classify
	if cl.K < 5 || cl.K > 15 {
		errs = append(errs, fmt.Errorf("classify.k %d is out of range [5, 15]", cl.K))
	}
	if cl.Alpha < 0 || cl.Alpha > 1 {
		errs = append(errs, fmt.Errorf("classify.alpha %.2f is out of range [0, 1]", cl.Alpha))
	}
	if cl.EmbeddingWeight < 0 || cl.PhoneticWeight < 0 {
		errs = append(errs, fmt.Errorf("classify fusion weights %.2f/%.2f must be non-negative", cl.EmbeddingWeight, cl.PhoneticWeight))
	} else if cl.EmbeddingWeight+cl.PhoneticWeight == 0 {
		errs = append(errs, errors.New("classify fusion weights must not both be zero"))
	}
	if cl.MarginScale <= 0 {
		errs = append(errs, fmt.Errorf("classify.margin_scale %.2f must be positive", cl.MarginScale))
	}
	if cl.MinSupport < 1 {
		errs = append(errs, fmt.Errorf("classify.min_support %d must be at least 1", cl.MinSupport))
	}
	if cl.ConfirmThreshold <= 0 || cl.ConfirmThreshold > 1 {
		errs = append(errs, fmt.Errorf("classify.confirm_threshold %.2f is out of range (0, 1]", cl.ConfirmThreshold))
	}
	if cl.UncertainThreshold <= 0 || cl.UncertainThreshold >= cl.ConfirmThreshold {
		errs = append(errs, fmt.Errorf("classify.uncertain_threshold %.2f must be positive and below confirm_threshold %.2f", cl.UncertainThreshold, cl.ConfirmThreshold))
	}
	if cl.EmergencyThreshold <= 0 || cl.EmergencyThreshold > 1 {
		errs = append(errs, fmt.Errorf("classify.emergency_threshold %.2f is out of range (0, 1]", cl.EmergencyThreshold))
	}
	if cl.EmergencyThreshold >= cl.ConfirmThreshold {
		slog.Warn("classify.emergency_threshold is not below confirm_threshold; the emergency override will rarely fire before the normal tier",
			"emergency_threshold", cl.EmergencyThreshold,
			"confirm_threshold", cl.ConfirmThreshold,
		)
	}

	// Phonetic
	if cfg.Phonetic.MaxCodeDistance < 0 || cfg.Phonetic.MaxCodeDistance > 9 {
		errs = append(errs, fmt.Errorf("phonetic.max_code_distance %d is out of range [0, 9]", cfg.Phonetic.MaxCodeDistance))
	}
	for name, variants := range cfg.Phonetic.ExtraVariants {
		it, err := intent.Parse(name)
		if err != nil || !it.Classifiable() {
			errs = append(errs, fmt.Errorf("phonetic.extra_variants key %q is not a classifiable intent", name))
			continue
		}
		if len(variants) == 0 {
			slog.Warn("phonetic.extra_variants entry has no variants", "intent", name)
		}
	}

	// Feedback
	if cfg.Feedback.PendingTTL < 0 {
		errs = append(errs, errors.New("feedback.pending_ttl must not be negative"))
	}
	if cfg.Feedback.PendingCap < 1 {
		errs = append(errs, fmt.Errorf("feedback.pending_cap %d must be at least 1", cfg.Feedback.PendingCap))
	}

	return errors.Join(errs...)
}

// ExtraVariants converts the string-keyed variant map from the YAML schema
// into the intent-keyed form the phonetic matcher consumes. Call only on a
// validated config.
func (c *Config) ExtraVariants() map[intent.Intent][]string {
	if len(c.Phonetic.ExtraVariants) == 0 {
		return nil
	}
	out := make(map[intent.Intent][]string, len(c.Phonetic.ExtraVariants))
	for name, variants := range c.Phonetic.ExtraVariants {
		it, err := intent.Parse(name)
		if err != nil {
			continue
		}
		out[it] = append(out[it], variants...)
	}
	return out
}
