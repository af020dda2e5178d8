package model

import (
	"fmt"
	"strings"
)

// ActionKind is the filing operation to perform.
type ActionKind string

// Action kinds.
const (
	ActionMove   ActionKind = "move"
	ActionCopy   ActionKind = "copy"
	ActionRename ActionKind = "rename"
)

// CollisionPolicy decides what happens when the target exists with different content.
type CollisionPolicy string

// Collision policies. CollisionFail is the default.
const (
	CollisionFail      CollisionPolicy = "fail"
	CollisionSuffix    CollisionPolicy = "suffix"
	CollisionOverwrite CollisionPolicy = "overwrite"
)

// ActionDescriptor describes how a classified document is filed.
type ActionDescriptor struct {
	Kind           ActionKind      `json:"kind" yaml:"kind"`
	TargetTemplate string          `json:"target" yaml:"target"`
	Collision      CollisionPolicy `json:"collision" yaml:"collision"`
}

// ParseActionKind accepts English names and the French configuration names.
func ParseActionKind(s string) (ActionKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "move", "deplacer", "déplacer":
		return ActionMove, nil
	case "copy", "copier":
		return ActionCopy, nil
	case "rename", "renommer":
		return ActionRename, nil
	default:
		return "", fmt.Errorf("unknown action type %q", s)
	}
}

// ParseCollisionPolicy parses a collision policy; empty means CollisionFail.
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail", "echec", "échec":
		return CollisionFail, nil
	case "suffix", "suffixe":
		return CollisionSuffix, nil
	case "overwrite", "ecraser", "écraser":
		return CollisionOverwrite, nil
	default:
		return "", fmt.Errorf("unknown collision policy %q", s)
	}
}

// ActionPolicy chooses the filing action for a classified document.
type ActionPolicy struct {
	ByCategory map[string]ActionDescriptor
	Default    ActionDescriptor
	Unresolved ActionDescriptor
}

// Select returns the matched rule's action, the holding action for
// unresolved documents, or the action configured for the model's category.
func (p ActionPolicy) Select(rule *ClassificationRule, resolved ResolvedClassification) ActionDescriptor {
	switch {
	case resolved.IsUnresolved():
		return p.Unresolved
	case rule != nil && resolved.Provenance == ProvenanceRule:
		return rule.Action
	}
	if action, ok := p.ByCategory[resolved.Category]; ok {
		return action
	}
	// Configuration keys arrive lowercased.
	if action, ok := p.ByCategory[strings.ToLower(resolved.Category)]; ok {
		return action
	}
	return p.Default
}
