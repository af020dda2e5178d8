// Package extract finds dates, amounts and business identifiers in document
// text and normalizes them.
package extract

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/paperflow/internal/model"
)

// AllFields is the field set used when a category has no profile.
var AllFields = []model.FieldName{model.FieldDate, model.FieldAmount, model.FieldIdentifier}

// Profiles maps a category to the fields worth extracting for it.
type Profiles map[string][]model.FieldName

// Fields returns the field set for category.
func (p Profiles) Fields(category string) []model.FieldName {
	if fields, ok := p[category]; ok {
		return fields
	}
	if fields, ok := p[strings.ToLower(category)]; ok {
		return fields
	}
	return AllFields
}

// Options configures an Extractor.
type Options struct {
	DateStrategy    DateStrategy
	Profiles        Profiles
	Logger          *slog.Logger
	DefaultCurrency string
}

// Extractor pulls structured fields out of text. It holds no per-call state
// and is safe for concurrent use.
type Extractor struct {
	strategy        DateStrategy
	profiles        Profiles
	logger          *slog.Logger
	defaultCurrency string
}

// New creates an extractor. Unset options fall back to LatestMatch, EUR and
// extracting every field.
func New(opts Options) *Extractor {
	if opts.DateStrategy == nil {
		opts.DateStrategy = LatestMatch
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "EUR"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Extractor{
		strategy:        opts.DateStrategy,
		profiles:        opts.Profiles,
		logger:          opts.Logger,
		defaultCurrency: opts.DefaultCurrency,
	}
}

// Extract returns the fields found in text for the given category. It never
// fails: a field that cannot be found is simply absent.
func (e *Extractor) Extract(text, category string) (fields model.Fields) {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("field extraction panicked", "category", category, "panic", r)
			fields = nil
		}
	}()

	wanted := make(map[model.FieldName]bool)
	for _, name := range e.profiles.Fields(category) {
		wanted[name] = true
	}

	// Dates and identifiers are located even when not wanted so that their
	// digits are never mistaken for amounts.
	dates := FindDates(text)
	identifiers := FindIdentifiers(text)

	var claimed spans
	for _, d := range dates {
		claimed.add(d.Position, d.End)
	}
	for _, id := range identifiers {
		claimed.add(id.Position, id.End)
	}

	if wanted[model.FieldDate] {
		if d, ok := e.strategy(dates); ok {
			fields = append(fields, model.ExtractedField{
				Name:     model.FieldDate,
				Raw:      d.Raw,
				Value:    d.ISO(),
				Method:   "date:" + d.Method,
				Position: d.Position,
			})
		}
	}

	if wanted[model.FieldAmount] {
		amounts := FindAmounts(text, e.defaultCurrency, claimed)
		if a, method, ok := SelectAmount(amounts); ok {
			fields = append(fields, model.ExtractedField{
				Name:     model.FieldAmount,
				Raw:      a.Raw,
				Value:    a.Value(),
				Method:   "amount:" + method,
				Position: a.Position,
			})
		}
	}

	if wanted[model.FieldIdentifier] {
		seen := make(map[string]bool)
		for _, id := range identifiers {
			if seen[id.Value] {
				continue
			}
			seen[id.Value] = true
			fields = append(fields, model.ExtractedField{
				Name:     model.FieldIdentifier,
				Raw:      id.Raw,
				Value:    id.Value,
				Method:   "identifier:" + id.Kind,
				Position: id.Position,
			})
		}
	}

	return fields
}

// ParseProfiles converts configuration (category -> field names) into Profiles.
func ParseProfiles(raw map[string][]string) (Profiles, error) {
	profiles := make(Profiles, len(raw))
	for category, names := range raw {
		fields := make([]model.FieldName, 0, len(names))
		for _, name := range names {
			field := model.FieldName(strings.ToLower(strings.TrimSpace(name)))
			switch field {
			case model.FieldDate, model.FieldAmount, model.FieldIdentifier:
				fields = append(fields, field)
			default:
				return nil, fmt.Errorf("profile %q: unknown field %q", category, name)
			}
		}
		profiles[category] = fields
	}
	return profiles, nil
}
