package dispatch

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/paperflow/internal/model"
)

func TestNewTargetData(t *testing.T) {
	data := NewTargetData(invoiceClass(), invoiceFields())
	assert.Equal(t, "factures", data.Category)
	assert.Equal(t, "2024", data.Year)
	assert.Equal(t, "01", data.Month)
	assert.Equal(t, "2024-01-31", data.Date)
	assert.Equal(t, "73282932000074", data.Identifier)

	empty := NewTargetData(model.ResolvedClassification{Category: "a/b"}, nil)
	assert.Equal(t, "a_b", empty.Category)
	assert.Equal(t, UndatedPart, empty.Year)
	assert.Equal(t, UnknownPart, empty.Identifier)
}

func TestRenderDir(t *testing.T) {
	root := filepath.FromSlash("/srv/docs")
	data := NewTargetData(invoiceClass(), invoiceFields())

	got, err := RenderDir(root, "{{.Category}}/{{.Year}}/{{.Month}}", data)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "factures", "2024", "01"), got)

	got, err = RenderDir(root, "{{upper .Category}}", data)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "FACTURES"), got)

	got, err = RenderDir(root, "/archive/{{.Identifier}}", data)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/archive", "73282932000074"), got)

	_, err = RenderDir(root, "../outside", data)
	assert.ErrorIs(t, err, ErrEscapesRoot)

	_, err = RenderDir(root, "{{.Missing}}", data)
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	doc := model.Document{SourcePath: "/inbox/Facture EDF (janv).PDF", Digest: "0123456789abcdef0123"}
	assert.Equal(t, "0123456789ab_Facture_EDF_janv.pdf", FileName(doc))

	filed := model.Document{SourcePath: "/inbox/0123456789ab_Facture.pdf", Digest: "0123456789abcdef0123"}
	assert.Equal(t, "0123456789ab_Facture.pdf", FileName(filed))

	noStem := model.Document{SourcePath: "/inbox/.pdf", Digest: "0123456789abcdef0123"}
	assert.Equal(t, "0123456789ab_unknown.pdf", FileName(noStem))
}

func TestSuffixed(t *testing.T) {
	assert.Equal(t, "/a/b_1.pdf", suffixed("/a/b.pdf", 1))
	assert.Equal(t, "/a/b_12", suffixed("/a/b", 12))
}
