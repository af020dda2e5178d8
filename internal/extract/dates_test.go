package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/paperflow/internal/model"
)

func TestFindDates(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   []string
		method string
	}{
		{name: "slash", text: "le 12/01/2024", want: []string{"2024-01-12"}, method: "numeric"},
		{name: "dash and dot", text: "05-03-2023 puis 06.03.2023", want: []string{"2023-03-05", "2023-03-06"}},
		{name: "two digit year", text: "émis le 12.05.24", want: []string{"2024-05-12"}},
		{name: "iso", text: "generated 2024-02-29 at 10:00", want: []string{"2024-02-29"}, method: "iso"},
		{name: "french month", text: "Paris, le 1er mars 2024", want: []string{"2024-03-01"}, method: "day-month-name"},
		{name: "french accented month", text: "15 AOÛT 2023", want: []string{"2023-08-15"}},
		{name: "abbreviated month", text: "3 déc. 2022", want: []string{"2022-12-03"}},
		{name: "english month first", text: "Invoice date: March 3, 2024", want: []string{"2024-03-03"}, method: "month-name-day"},
		{name: "english day first", text: "3rd September 2021", want: []string{"2021-09-03"}},
		{name: "impossible date dropped", text: "31/02/2024 et 30/02/2024", want: nil},
		{name: "mixed separators dropped", text: "12/01-2024", want: nil},
		{name: "month out of range", text: "12/13/2024", want: nil},
		{name: "no dates", text: "Facture n° 42", want: nil},
		{name: "day and month on different pages", text: "Page total 12" + model.PageBreak + "janvier 2024 suite", want: nil},
		{name: "month and day on different pages", text: "March" + model.PageBreak + "3, 2024", want: nil},
		{name: "non-breaking space", text: "1er\u00a0mars\u00a02024", want: []string{"2024-03-01"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found := FindDates(tt.text)
			var got []string
			for _, c := range found {
				got = append(got, c.ISO())
			}
			assert.Equal(t, tt.want, got)
			if tt.method != "" {
				require.NotEmpty(t, found)
				assert.Equal(t, tt.method, found[0].Method)
			}
		})
	}
}

func TestFindDates_PositionsAndRaw(t *testing.T) {
	text := "Date: 12/01/2024"
	found := FindDates(text)
	require.Len(t, found, 1)
	assert.Equal(t, 6, found[0].Position)
	assert.Equal(t, "12/01/2024", found[0].Raw)
	assert.Equal(t, text[found[0].Position:found[0].End], found[0].Raw)
}

func TestDateRoundTrip(t *testing.T) {
	text := "12/01/2024, 1er mars 2024, 2023-12-31, March 3, 2024, 29.02.24, 7 juillet 1999"
	found := FindDates(text)
	require.Len(t, found, 6)

	for _, c := range found {
		parsed, err := ParseISODate(c.ISO())
		require.NoError(t, err)
		assert.True(t, parsed.Equal(c.Date), c.Raw)
		assert.Equal(t, c.ISO(), parsed.Format("2006-01-02"))
	}

	_, err := ParseISODate("2024-13-01")
	assert.Error(t, err)
}

func TestDateStrategies(t *testing.T) {
	// Candidates in text order: 12/01 then 31/01.
	candidates := FindDates("Facture du 12/01/2024\n...\nSigné le 31/01/2024")
	require.Len(t, candidates, 2)

	latest, ok := LatestMatch(candidates)
	require.True(t, ok)
	assert.Equal(t, "2024-01-31", latest.ISO())

	first, ok := FirstMatch(candidates)
	require.True(t, ok)
	assert.Equal(t, "2024-01-12", first.ISO())

	_, ok = LatestMatch(nil)
	assert.False(t, ok)
	_, ok = FirstMatch(nil)
	assert.False(t, ok)
}

func TestLatestMatch_UsesPositionNotDate(t *testing.T) {
	candidates := FindDates("31/12/2024 puis 01/01/2020")
	latest, ok := LatestMatch(candidates)
	require.True(t, ok)
	assert.Equal(t, "2020-01-01", latest.ISO())
}

func TestParseDateStrategy(t *testing.T) {
	for _, name := range []string{"", "latest", "first"} {
		s, err := ParseDateStrategy(name)
		require.NoError(t, err)
		assert.NotNil(t, s)
	}
	_, err := ParseDateStrategy("highest")
	assert.Error(t, err)
}
