package rules

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/Veraticus/paperflow/internal/common"
	"github.com/Veraticus/paperflow/internal/model"
)

//go:embed schema.json
var schemaJSON []byte

var configSchema = compileSchema()

func compileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("rules.schema.json", bytes.NewReader(schemaJSON)); err != nil {
		panic(fmt.Sprintf("add rule schema: %v", err))
	}
	return compiler.MustCompile("rules.schema.json")
}

// rawCondition accepts both the French and English key names.
type rawCondition struct {
	Type   string `yaml:"type"`
	Champ  string `yaml:"champ"`
	Field  string `yaml:"field"`
	Valeur string `yaml:"valeur"`
	Value  string `yaml:"value"`
}

// RawAction is the configuration form of an action.
type RawAction struct {
	Type         string `yaml:"type" mapstructure:"type"`
	DossierCible string `yaml:"dossier_cible" mapstructure:"dossier_cible"`
	Target       string `yaml:"target" mapstructure:"target"`
	Collision    string `yaml:"collision" mapstructure:"collision"`
}

type rawRule struct {
	Action     RawAction      `yaml:"action"`
	Nom        string         `yaml:"nom"`
	Name       string         `yaml:"name"`
	Categorie  string         `yaml:"categorie"`
	Category   string         `yaml:"category"`
	Conditions []rawCondition `yaml:"conditions"`
}

type rawConfig struct {
	Criteres []rawRule `yaml:"criteres"`
	Rules    []rawRule `yaml:"rules"`
}

// LoadFile reads the rules declared in a YAML or JSON file. Rules are
// returned in declaration order.
func LoadFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.NewConfigError(path, fmt.Errorf("%w: %w", common.ErrMissingConfig, err))
	}
	return Parse(data, path)
}

// Parse decodes and validates a rule configuration document. Structural
// problems are reported as ConfigError, unusable criteria as
// InvalidCriterionError.
func Parse(data []byte, source string) ([]Rule, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, common.NewConfigError(source, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err))
	}
	if doc == nil {
		return nil, nil
	}
	if err := validateSchema(doc); err != nil {
		return nil, common.NewConfigError(source, err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, common.NewConfigError(source, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err))
	}

	entries := raw.Criteres
	if len(entries) == 0 {
		entries = raw.Rules
	}

	rules := make([]Rule, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		rule, err := entry.toRule()
		if err != nil {
			var critErr *common.InvalidCriterionError
			if errors.As(err, &critErr) {
				return nil, err
			}
			return nil, common.NewConfigError(source, err)
		}
		if seen[rule.Name] {
			return nil, common.NewConfigError(source, fmt.Errorf("%w: duplicate rule name %q", common.ErrInvalidConfig, rule.Name))
		}
		seen[rule.Name] = true
		rules = append(rules, rule)
	}

	return rules, nil
}

func validateSchema(doc any) error {
	// Round-trip through JSON so the validator sees JSON types only.
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: top level must be a mapping: %w", common.ErrInvalidConfig, err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	if err := configSchema.Validate(v); err != nil {
		return fmt.Errorf("%w: rule configuration does not match schema: %w", common.ErrInvalidConfig, err)
	}
	return nil
}

func (r rawRule) toRule() (Rule, error) {
	name := firstNonEmpty(r.Nom, r.Name)
	rule := Rule{
		Name:     strings.TrimSpace(name),
		Category: strings.TrimSpace(firstNonEmpty(r.Categorie, r.Category)),
		Criteria: make([]model.Criterion, 0, len(r.Conditions)),
	}

	for i, cond := range r.Conditions {
		field := firstNonEmpty(cond.Champ, cond.Field)
		pattern := firstNonEmpty(cond.Valeur, cond.Value)

		target, err := model.ParseFieldTarget(field)
		if err != nil {
			return Rule{}, &common.InvalidCriterionError{Rule: rule.Name, Index: i, Field: field, Pattern: pattern, Err: err}
		}

		switch strings.ToLower(cond.Type) {
		case "regex":
			rule.Criteria = append(rule.Criteria, model.RegexCriterion{Field: target, Expr: pattern})
		case "mot_cle", "mot-cle", "mot_clé", "keyword":
			rule.Criteria = append(rule.Criteria, model.KeywordCriterion{Field: target, Keyword: pattern})
		default:
			return Rule{}, &common.InvalidCriterionError{
				Rule: rule.Name, Index: i, Field: field, Pattern: pattern,
				Err: fmt.Errorf("unknown condition type %q", cond.Type),
			}
		}
	}

	action, err := r.Action.Descriptor()
	if err != nil {
		return Rule{}, fmt.Errorf("rule %q: %w", rule.Name, err)
	}
	rule.Action = action

	return rule, nil
}

// Descriptor converts the configuration form into an ActionDescriptor.
// move and copy require a target directory; rename keeps the source directory.
func (a RawAction) Descriptor() (model.ActionDescriptor, error) {
	kind, err := model.ParseActionKind(a.Type)
	if err != nil {
		return model.ActionDescriptor{}, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	collision, err := model.ParseCollisionPolicy(a.Collision)
	if err != nil {
		return model.ActionDescriptor{}, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}

	target := strings.TrimSpace(firstNonEmpty(a.DossierCible, a.Target))
	if target == "" && kind != model.ActionRename {
		return model.ActionDescriptor{}, fmt.Errorf("%w: %s action needs a target directory", common.ErrInvalidConfig, kind)
	}

	return model.ActionDescriptor{Kind: kind, TargetTemplate: target, Collision: collision}, nil
}

// LoadEngine loads the rule file at path and compiles it.
func LoadEngine(path string) (*Engine, error) {
	rules, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	engine, err := NewEngine(rules)
	if err != nil {
		var cfgErr *common.ConfigError
		if errors.As(err, &cfgErr) && cfgErr.Path == "" {
			cfgErr.Path = path
		}
		return nil, err
	}
	return engine, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
