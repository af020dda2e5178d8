// Package config loads the application settings and rule list from one
// YAML file, with PAPERFLOW_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/paperflow/internal/common"
	"github.com/Veraticus/paperflow/internal/dispatch"
	"github.com/Veraticus/paperflow/internal/extract"
	"github.com/Veraticus/paperflow/internal/model"
	"github.com/Veraticus/paperflow/internal/resolver"
	"github.com/Veraticus/paperflow/internal/rules"
)

// EnvPrefix prefixes environment overrides, e.g. PAPERFLOW_OUTPUT_ROOT.
const EnvPrefix = "PAPERFLOW"

// OCR engine names.
const (
	EngineAuto      = "auto"
	EngineSidecar   = "sidecar"
	EnginePDFText   = "pdftext"
	EngineTesseract = "tesseract"
	EngineText      = "text"
)

// Config is the full application configuration.
type Config struct {
	Actions         ActionsConfig    `mapstructure:"actions"`
	Extract         ExtractConfig    `mapstructure:"extract"`
	Classifier      ClassifierConfig `mapstructure:"classifier"`
	OCR             OCRConfig        `mapstructure:"ocr"`
	Logging         LoggingConfig    `mapstructure:"logging"`
	Audit           AuditConfig      `mapstructure:"audit"`
	Metrics         MetricsConfig    `mapstructure:"metrics"`
	Inbox           string           `mapstructure:"inbox"`
	OutputRoot      string           `mapstructure:"output_root"`
	DefaultCurrency string           `mapstructure:"default_currency"`
	RulesFile       string           `mapstructure:"rules_file"`
	Source          string           `mapstructure:"-"`
	Workers         int              `mapstructure:"workers"`
}

// ClassifierConfig configures the statistical classifier.
type ClassifierConfig struct {
	ModelPath     string        `mapstructure:"model_path"`
	Threshold     float64       `mapstructure:"threshold"`
	Timeout       time.Duration `mapstructure:"timeout"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	AllowRuleOnly bool          `mapstructure:"allow_rule_only"`
}

// OCRConfig selects and bounds the text source.
type OCRConfig struct {
	Engine           string        `mapstructure:"engine"`
	Language         string        `mapstructure:"language"`
	Timeout          time.Duration `mapstructure:"timeout"`
	BreakerOpen      time.Duration `mapstructure:"breaker_open"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

// ExtractConfig configures field extraction.
type ExtractConfig struct {
	Profiles     map[string][]string `mapstructure:"profiles"`
	DateStrategy string              `mapstructure:"date_strategy"`
}

// ActionsConfig holds the actions used when no rule matched.
type ActionsConfig struct {
	ByCategory map[string]rules.RawAction `mapstructure:"by_category"`
	Default    rules.RawAction            `mapstructure:"default"`
	Unresolved rules.RawAction            `mapstructure:"unresolved"`
}

// AuditConfig locates the audit database and the JSON line log. An empty
// LogFile sends the JSON lines to stderr.
type AuditConfig struct {
	Database string `mapstructure:"database"`
	LogFile  string `mapstructure:"log_file"`
}

// MetricsConfig locates the optional Prometheus textfile.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// LoggingConfig mirrors the --log-level and --log-format flags.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers default values and environment overrides on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("inbox", "~/Documents/Inbox")
	v.SetDefault("output_root", "~/Documents/Classement")
	v.SetDefault("workers", 0)
	v.SetDefault("default_currency", "EUR")
	v.SetDefault("rules_file", "")

	v.SetDefault("classifier.model_path", "~/.local/share/paperflow/model.json")
	v.SetDefault("classifier.threshold", resolver.DefaultThreshold)
	v.SetDefault("classifier.allow_rule_only", false)
	v.SetDefault("classifier.timeout", 10*time.Second)
	v.SetDefault("classifier.cache_ttl", 15*time.Minute)

	v.SetDefault("ocr.engine", EngineAuto)
	v.SetDefault("ocr.language", "fra")
	v.SetDefault("ocr.timeout", 60*time.Second)
	v.SetDefault("ocr.breaker_open", 30*time.Second)
	v.SetDefault("ocr.failure_threshold", 5)

	v.SetDefault("extract.date_strategy", "latest")

	v.SetDefault("actions.default.type", "copier")
	v.SetDefault("actions.default.dossier_cible", "{{.Category}}/{{.Year}}")
	v.SetDefault("actions.unresolved.type", "copier")
	v.SetDefault("actions.unresolved.dossier_cible", "_a_verifier")

	v.SetDefault("audit.database", "~/.local/share/paperflow/audit.db")
	v.SetDefault("audit.log_file", "~/.local/share/paperflow/audit.jsonl")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// ReadFile reads the configuration file at path into v. Unlike the
// default search locations, an explicit file must exist.
func ReadFile(v *viper.Viper, path string) error {
	v.SetConfigFile(ExpandPath(path))
	if err := v.ReadInConfig(); err != nil {
		return common.NewConfigError(path, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err))
	}
	return nil
}

// FromViper decodes, expands and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, common.NewConfigError(v.ConfigFileUsed(), fmt.Errorf("%w: %w", common.ErrInvalidConfig, err))
	}
	cfg.Source = v.ConfigFileUsed()

	cfg.Inbox = ExpandPath(cfg.Inbox)
	cfg.OutputRoot = ExpandPath(cfg.OutputRoot)
	cfg.RulesFile = resolveAgainst(cfg.Source, cfg.RulesFile)
	cfg.Classifier.ModelPath = ExpandPath(cfg.Classifier.ModelPath)
	cfg.Audit.Database = ExpandPath(cfg.Audit.Database)
	cfg.Audit.LogFile = ExpandPath(cfg.Audit.LogFile)
	cfg.Metrics.Textfile = ExpandPath(cfg.Metrics.Textfile)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every setting that can be checked without touching
// documents.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.OutputRoot) == "" {
		errs = append(errs, fmt.Errorf("%w: output_root", common.ErrMissingConfig))
	}
	if c.Workers < 0 {
		add("workers must be >= 0, got %d", c.Workers)
	}
	if len(c.DefaultCurrency) != 3 {
		add("default_currency must be a 3-letter code, got %q", c.DefaultCurrency)
	}
	if c.Classifier.Threshold < 0 || c.Classifier.Threshold > 1 {
		add("classifier.threshold must be within [0,1], got %v", c.Classifier.Threshold)
	}
	if c.Classifier.Timeout < 0 || c.OCR.Timeout < 0 {
		add("timeouts must not be negative")
	}
	switch c.OCR.Engine {
	case EngineAuto, EngineSidecar, EnginePDFText, EngineTesseract, EngineText:
	default:
		add("unknown ocr.engine %q", c.OCR.Engine)
	}
	if _, err := extract.ParseDateStrategy(c.Extract.DateStrategy); err != nil {
		add("extract.date_strategy: %w", err)
	}
	if _, err := extract.ParseProfiles(c.Extract.Profiles); err != nil {
		add("extract.profiles: %w", err)
	}
	if _, err := common.ParseLevel(c.Logging.Level); err != nil {
		add("logging.level: %w", err)
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		add("logging.format must be console or json, got %q", c.Logging.Format)
	}
	if _, err := c.ActionPolicy(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return nil
	}
	return common.NewConfigError(c.Source, fmt.Errorf("%w: %w", common.ErrInvalidConfig, errors.Join(errs...)))
}

// WorkerCount returns the configured worker count, defaulting to the CPU count.
func (c *Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// ActionPolicy parses the fallback actions.
func (c *Config) ActionPolicy() (model.ActionPolicy, error) {
	policy := model.ActionPolicy{ByCategory: make(map[string]model.ActionDescriptor, len(c.Actions.ByCategory))}

	var err error
	if policy.Default, err = parseAction("actions.default", c.Actions.Default); err != nil {
		return policy, err
	}
	if policy.Unresolved, err = parseAction("actions.unresolved", c.Actions.Unresolved); err != nil {
		return policy, err
	}
	for category, raw := range c.Actions.ByCategory {
		action, err := parseAction("actions.by_category."+category, raw)
		if err != nil {
			return policy, err
		}
		policy.ByCategory[category] = action
	}
	return policy, nil
}

func parseAction(key string, raw rules.RawAction) (model.ActionDescriptor, error) {
	action, err := raw.Descriptor()
	if err != nil {
		return action, fmt.Errorf("%s: %w", key, err)
	}
	if err := checkTemplate(action); err != nil {
		return action, fmt.Errorf("%s: %w", key, err)
	}
	return action, nil
}

func checkTemplate(action model.ActionDescriptor) error {
	if action.Kind == model.ActionRename {
		return nil
	}
	_, err := dispatch.ParseTemplate(action.TargetTemplate)
	return err
}

// LoadRules reads the rule list from rules_file, or from the configuration
// file itself when none is set. Rule action templates are checked here so
// that a bad template fails at startup.
func (c *Config) LoadRules() ([]rules.Rule, error) {
	path := c.RulesFile
	if path == "" {
		path = c.Source
	}
	if path == "" {
		return nil, nil
	}

	list, err := rules.LoadFile(path)
	if err != nil {
		return nil, err
	}
	for _, r := range list {
		if err := checkTemplate(r.Action); err != nil {
			return nil, common.NewConfigError(path, fmt.Errorf("%w: rule %q: %w", common.ErrInvalidConfig, r.Name, err))
		}
	}
	return list, nil
}
