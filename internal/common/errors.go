// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")

	// Document errors.
	ErrNoPages           = errors.New("document has no pages")
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// Classifier errors.
	ErrModelNotLoaded = errors.New("classifier model not loaded")

	// Filing errors.
	ErrTargetExists = errors.New("target exists with different content")
)

// ConfigError reports a malformed configuration. It is fatal at startup.
type ConfigError struct {
	Err  error
	Path string
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("configuration %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("configuration: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError wraps err as a ConfigError for the given file.
func NewConfigError(path string, err error) error {
	return &ConfigError{Path: path, Err: err}
}

// InvalidCriterionError reports a rule criterion that cannot be compiled.
// It is raised when rules are loaded, never while matching.
type InvalidCriterionError struct {
	Err     error
	Rule    string
	Field   string
	Pattern string
	Index   int
}

func (e *InvalidCriterionError) Error() string {
	return fmt.Sprintf("rule %q criterion #%d (%s %q): %v", e.Rule, e.Index+1, e.Field, e.Pattern, e.Err)
}

func (e *InvalidCriterionError) Unwrap() error {
	return e.Err
}

// OCRDataError reports that no usable page data exists for a document.
type OCRDataError struct {
	Err    error
	Source string
}

func (e *OCRDataError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("ocr data for %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("ocr data: %v", e.Err)
}

func (e *OCRDataError) Unwrap() error {
	return e.Err
}

// NewOCRDataError wraps err as an OCRDataError for the given source.
func NewOCRDataError(source string, err error) error {
	return &OCRDataError{Source: source, Err: err}
}

// ClassifierUnavailableError reports that the statistical classifier cannot serve predictions.
type ClassifierUnavailableError struct {
	Err        error
	Classifier string
}

func (e *ClassifierUnavailableError) Error() string {
	if e.Classifier != "" {
		return fmt.Sprintf("classifier %s unavailable: %v", e.Classifier, e.Err)
	}
	return fmt.Sprintf("classifier unavailable: %v", e.Err)
}

func (e *ClassifierUnavailableError) Unwrap() error {
	return e.Err
}

// NewClassifierUnavailableError wraps err as a ClassifierUnavailableError.
func NewClassifierUnavailableError(classifier string, err error) error {
	return &ClassifierUnavailableError{Classifier: classifier, Err: err}
}

// ActionConflictError reports a filing target that already holds different content
// while the collision policy is "fail".
type ActionConflictError struct {
	Target string
}

func (e *ActionConflictError) Error() string {
	return fmt.Sprintf("%v: %s", ErrTargetExists, e.Target)
}

func (e *ActionConflictError) Unwrap() error {
	return ErrTargetExists
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsFatal reports whether err must abort a run before any document is touched.
func IsFatal(err error) bool {
	var cfgErr *ConfigError
	var critErr *InvalidCriterionError
	var clsErr *ClassifierUnavailableError
	return errors.As(err, &cfgErr) || errors.As(err, &critErr) || errors.As(err, &clsErr)
}
