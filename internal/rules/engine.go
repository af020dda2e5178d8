// Package rules evaluates configured classification rules against documents.
package rules

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/Veraticus/paperflow/internal/common"
	"github.com/Veraticus/paperflow/internal/model"
	"github.com/Veraticus/paperflow/internal/textnorm"
)

// Rule is an alias to the model.ClassificationRule type for convenience.
type Rule = model.ClassificationRule


type compiledCriterion struct {
	re      *regexp.Regexp
	keyword string // folded
	target  model.FieldTarget
}

type compiledRule struct {
	rule     Rule
	criteria []compiledCriterion
}

// Engine matches documents against an ordered rule list. It is immutable
// after construction and safe for concurrent use.
type Engine struct {
	rules []compiledRule
}

// NewEngine compiles every criterion up front. A pattern that does not
// compile is reported as an InvalidCriterionError, and a rule without
// criteria as a ConfigError.
func NewEngine(rules []Rule) (*Engine, error) {
	e := &Engine{rules: make([]compiledRule, 0, len(rules))}

	for _, rule := range rules {
		if len(rule.Criteria) == 0 {
			return nil, common.NewConfigError("", fmt.Errorf("%w: rule %q has no criteria", common.ErrInvalidConfig, rule.Name))
		}

		cr := compiledRule{rule: rule, criteria: make([]compiledCriterion, 0, len(rule.Criteria))}
		for i, criterion := range rule.Criteria {
			compiled, err := compileCriterion(criterion)
			if err != nil {
				return nil, &common.InvalidCriterionError{
					Rule:    rule.Name,
					Index:   i,
					Field:   criterion.Target().String(),
					Pattern: criterion.Pattern(),
					Err:     err,
				}
			}
			cr.criteria = append(cr.criteria, compiled)
		}
		e.rules = append(e.rules, cr)
	}

	return e, nil
}

func compileCriterion(c model.Criterion) (compiledCriterion, error) {
	target := c.Target()
	switch target.Kind {
	case model.FieldFilename, model.FieldContent:
	case model.FieldMetadata:
		if target.Key == "" {
			return compiledCriterion{}, model.ErrUnknownField
		}
	default:
		return compiledCriterion{}, fmt.Errorf("%w: %q", model.ErrUnknownField, target.Kind)
	}

	switch c := c.(type) {
	case model.RegexCriterion:
		if c.Expr == "" {
			return compiledCriterion{}, errors.New("empty pattern")
		}
		// A later (?-i) in the pattern turns case folding back off.
		re, err := regexp.Compile("(?i)" + c.Expr)
		if err != nil {
			return compiledCriterion{}, err
		}
		return compiledCriterion{target: target, re: re}, nil
	case model.KeywordCriterion:
		if c.Keyword == "" {
			return compiledCriterion{}, errors.New("empty keyword")
		}
		return compiledCriterion{target: target, keyword: textnorm.Fold(c.Keyword)}, nil
	default:
		return compiledCriterion{}, fmt.Errorf("unsupported criterion kind %q", c.Kind())
	}
}

// Len returns the number of rules.
func (e *Engine) Len() int {
	return len(e.rules)
}

// Rules returns the rules in declaration order.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.rule
	}
	return out
}

// Match returns the first rule, in declaration order, whose criteria all match.
func (e *Engine) Match(s Subject) (*Rule, bool) {
	fields := newFieldCache(s)
	for i := range e.rules {
		if e.rules[i].matches(fields) {
			rule := e.rules[i].rule
			return &rule, true
		}
	}
	return nil, false
}

// CriterionResult is the outcome of one criterion during Explain.
type CriterionResult struct {
	Criterion model.Criterion
	Matched   bool
}

// RuleResult is the outcome of one rule during Explain.
type RuleResult struct {
	Criteria []CriterionResult
	Rule     Rule
	Matched  bool
}

// Explain evaluates every criterion of every rule without stopping at the
// first match. Match remains the only source of classification decisions.
func (e *Engine) Explain(s Subject) []RuleResult {
	fields := newFieldCache(s)
	results := make([]RuleResult, 0, len(e.rules))
	for _, cr := range e.rules {
		rr := RuleResult{Rule: cr.rule, Matched: true}
		for i, c := range cr.criteria {
			ok := c.matches(fields)
			rr.Criteria = append(rr.Criteria, CriterionResult{Criterion: cr.rule.Criteria[i], Matched: ok})
			rr.Matched = rr.Matched && ok
		}
		results = append(results, rr)
	}
	return results
}

func (r *compiledRule) matches(fields *fieldCache) bool {
	for _, c := range r.criteria {
		if !c.matches(fields) {
			return false
		}
	}
	return true
}

func (c compiledCriterion) matches(fields *fieldCache) bool {
	if c.re != nil {
		return c.re.MatchString(fields.raw(c.target))
	}
	return containsFolded(fields.folded(c.target), c.keyword)
}
