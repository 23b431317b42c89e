// Package config resolves pxflux settings from a YAML file, a .env file and
// PXFLUX_* environment variables, in that order of increasing precedence.
// The result is checked against an embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/pxflux/internal/engine"
)

//go:embed schema.cue
var schemaSrc string

// Store backends.
const (
	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"
)

// Config is the resolved configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" json:"store"`
	Executor   ExecutorConfig   `yaml:"executor" json:"executor"`
	Pins       PinsConfig       `yaml:"pins" json:"pins"`
	Identity   IdentityConfig   `yaml:"identity" json:"identity"`
	Blobs      BlobsConfig      `yaml:"blobs" json:"blobs"`
	Monitoring MonitoringConfig `yaml:"monitoring" json:"monitoring"`
	Cascade    CascadeConfig    `yaml:"cascade" json:"cascade"`
	Billing    BillingConfig    `yaml:"billing" json:"billing"`
}

type StoreConfig struct {
	Backend string `yaml:"backend" json:"backend"`
	Path    string `yaml:"path" json:"path"`
	Project string `yaml:"project" json:"project"`
}

type ExecutorConfig struct {
	MaxConcurrency int    `yaml:"max_concurrency" json:"max_concurrency"`
	RetryAttempts  int    `yaml:"retry_attempts" json:"retry_attempts"`
	RetryBaseDelay string `yaml:"retry_base_delay" json:"retry_base_delay"`
	RetryMaxDelay  string `yaml:"retry_max_delay" json:"retry_max_delay"`
}

type PinsConfig struct {
	KeepAccountID bool `yaml:"keep_account_id" json:"keep_account_id"`
}

type IdentityConfig struct {
	Secret   string `yaml:"secret" json:"secret"`
	TokenTTL string `yaml:"token_ttl" json:"token_ttl"`
}

type BlobsConfig struct {
	// Delete enables Cloud Storage deletion. Otherwise deletions are only
	// logged.
	Delete bool `yaml:"delete" json:"delete"`
}

type MonitoringConfig struct {
	Enabled     bool    `yaml:"enabled" json:"enabled"`
	Project     string  `yaml:"project" json:"project"`
	SampleRatio float64 `yaml:"sample_ratio" json:"sample_ratio"`
}

type CascadeConfig struct {
	MaxRounds int `yaml:"max_rounds" json:"max_rounds"`
}

type BillingConfig struct {
	// Enabled turns on the billing callables against the sandbox provider,
	// which logs provider calls instead of charging anyone.
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Store: StoreConfig{Backend: BackendSQLite, Path: "pxflux.db"},
		Executor: ExecutorConfig{
			MaxConcurrency: engine.DefaultMaxConcurrency,
			RetryAttempts:  engine.DefaultRetryPolicy.Attempts,
			RetryBaseDelay: "100ms",
			RetryMaxDelay:  "2s",
		},
		Identity:   IdentityConfig{TokenTTL: "1h"},
		Monitoring: MonitoringConfig{SampleRatio: 1},
		Cascade:    CascadeConfig{MaxRounds: engine.DefaultMaxRounds},
	}
}

// Options says where to look for settings. Empty paths are skipped.
type Options struct {
	File   string
	DotEnv string
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Load resolves the configuration.
func Load(opts Options) (Config, error) {
	cfg := Default()
	if opts.File != "" {
		if err := cfg.mergeFile(opts.File); err != nil {
			return Config{}, err
		}
	}
	if opts.DotEnv != "" {
		if err := LoadDotEnv(opts.DotEnv); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", opts.DotEnv, err)
		}
	}
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from path if it exists. Variables already set
// in the environment win.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := map[string]*string{
		"PXFLUX_STORE_BACKEND":     &c.Store.Backend,
		"PXFLUX_DB":                &c.Store.Path,
		"PXFLUX_FIRESTORE_PROJECT": &c.Store.Project,
		"PXFLUX_RETRY_BASE_DELAY":  &c.Executor.RetryBaseDelay,
		"PXFLUX_RETRY_MAX_DELAY":   &c.Executor.RetryMaxDelay,
		"PXFLUX_TOKEN_SECRET":      &c.Identity.Secret,
		"PXFLUX_TOKEN_TTL":         &c.Identity.TokenTTL,
		"PXFLUX_TRACE_PROJECT":     &c.Monitoring.Project,
	}
	for name, dst := range str {
		if raw := getenv(name); raw != "" {
			*dst = raw
		}
	}

	ints := map[string]*int{
		"PXFLUX_MAX_CONCURRENCY": &c.Executor.MaxConcurrency,
		"PXFLUX_RETRY_ATTEMPTS":  &c.Executor.RetryAttempts,
		"PXFLUX_MAX_ROUNDS":      &c.Cascade.MaxRounds,
	}
	for name, dst := range ints {
		if raw := getenv(name); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = v
		}
	}

	bools := map[string]*bool{
		"PXFLUX_KEEP_PIN_ACCOUNT_ID": &c.Pins.KeepAccountID,
		"PXFLUX_BLOB_DELETE":         &c.Blobs.Delete,
		"PXFLUX_MONITORING":          &c.Monitoring.Enabled,
		"PXFLUX_BILLING":             &c.Billing.Enabled,
	}
	for name, dst := range bools {
		if raw := getenv(name); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = v
		}
	}

	if raw := getenv("PXFLUX_SAMPLE_RATIO"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("PXFLUX_SAMPLE_RATIO: %w", err)
		}
		c.Monitoring.SampleRatio = v
	}
	return nil
}

// Validate checks c against the schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}
	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %s", strings.TrimSpace(err.Error()))
	}
	return nil
}

// RetryPolicy returns the executor retry policy.
func (c Config) RetryPolicy() (engine.RetryPolicy, error) {
	base, err := time.ParseDuration(c.Executor.RetryBaseDelay)
	if err != nil {
		return engine.RetryPolicy{}, fmt.Errorf("retry_base_delay: %w", err)
	}
	maxDelay, err := time.ParseDuration(c.Executor.RetryMaxDelay)
	if err != nil {
		return engine.RetryPolicy{}, fmt.Errorf("retry_max_delay: %w", err)
	}
	return engine.RetryPolicy{Attempts: c.Executor.RetryAttempts, BaseDelay: base, MaxDelay: maxDelay}, nil
}

// TokenTTL returns the lifetime of minted tokens.
func (c Config) TokenTTL() (time.Duration, error) {
	d, err := time.ParseDuration(c.Identity.TokenTTL)
	if err != nil {
		return 0, fmt.Errorf("token_ttl: %w", err)
	}
	return d, nil
}
