package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindIdentifiers(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantValue []string
		wantKind  []string
	}{
		{
			name:      "spaced siret",
			text:      "SIRET : 732 829 320 00074",
			wantValue: []string{"73282932000074"},
			wantKind:  []string{"siret"},
		},
		{
			name:      "compact siret does not also yield its siren",
			text:      "SIRET 73282932000074",
			wantValue: []string{"73282932000074"},
			wantKind:  []string{"siret"},
		},
		{
			name:      "siren",
			text:      "RCS Paris 443 061 841",
			wantValue: []string{"443061841"},
			wantKind:  []string{"siren"},
		},
		{
			name:      "la poste establishment",
			text:      "SIRET 35600000049837",
			wantValue: []string{"35600000049837"},
			wantKind:  []string{"siret"},
		},
		{
			name:      "checksum failures are discarded",
			text:      "SIRET 123456789 et 12345678901234",
			wantValue: nil,
		},
		{
			name:      "text order",
			text:      "client 443061841 fournisseur 732 829 320 00074",
			wantValue: []string{"443061841", "73282932000074"},
			wantKind:  []string{"siren", "siret"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var values, kinds []string
			for _, id := range FindIdentifiers(tt.text) {
				values = append(values, id.Value)
				kinds = append(kinds, id.Kind)
			}
			assert.Equal(t, tt.wantValue, values)
			if tt.wantKind != nil {
				assert.Equal(t, tt.wantKind, kinds)
			}
		})
	}
}

func TestChecksums(t *testing.T) {
	assert.True(t, ValidSIREN("732829320"))
	assert.False(t, ValidSIREN("732829321"))
	assert.False(t, ValidSIREN("73282932"))
	assert.True(t, ValidSIRET("73282932000074"))
	assert.False(t, ValidSIRET("73282932000075"))
	assert.False(t, ValidSIRET("7328293200007a"))
}
