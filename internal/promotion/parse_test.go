package promotion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/amar74/n-be-sub001/internal/models"
)

func TestParseBudget(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
		ok   bool
	}{
		{name: "formatted dollars", text: "$1,250,000", want: 1250000, ok: true},
		{name: "written million", text: "1.5 million", want: 1500000, ok: true},
		{name: "abbreviated million", text: "$2.5M", want: 2500000, ok: true},
		{name: "abbreviated thousand", text: "750k", want: 750000, ok: true},
		{name: "written billion", text: "approx 1.2 billion", want: 1200000000, ok: true},
		{name: "plain number", text: "98000", want: 98000, ok: true},
		{name: "euro symbol", text: "€450,000", want: 450000, ok: true},
		{name: "trailing word is not a multiplier", text: "$1,250,000 budget", want: 1250000, ok: true},
		{name: "bid bond is not billions", text: "$500 bid bond", want: 500, ok: true},
		{name: "max is not millions", text: "$2 max", want: 2, ok: true},
		{name: "multiplier followed by more words", text: "$3.5 billion program", want: 3500000000, ok: true},
		{name: "no number", text: "call for pricing", ok: false},
		{name: "empty", text: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseBudget(tt.text)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 0.001)
			}
		})
	}
}

func TestResolveRiskBand(t *testing.T) {
	score := func(v float64) *float64 { return &v }

	tests := []struct {
		name  string
		score *float64
		tags  []string
		want  string
	}{
		{name: "high score", score: score(85), want: models.RiskBandHigh},
		{name: "threshold is high", score: score(70), want: models.RiskBandHigh},
		{name: "medium score", score: score(55), want: models.RiskBandMedium},
		{name: "low score", score: score(10), want: models.RiskBandLow},
		{name: "zero score is low", score: score(0), want: models.RiskBandLow},
		{name: "high risk tag", tags: []string{"urgent", "high risk"}, want: models.RiskBandHigh},
		{name: "moderate tag", tags: []string{"moderate complexity"}, want: models.RiskBandMedium},
		{name: "score wins over tags", score: score(10), tags: []string{"high risk"}, want: models.RiskBandLow},
		{name: "nothing", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveRiskBand(tt.score, tt.tags))
		})
	}
}

func TestResolveState(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    string
	}{
		{
			name:    "explicit state field",
			payload: map[string]any{"state": "California", "location": "somewhere else"},
			want:    "California",
		},
		{
			name:    "structured location sub-object",
			payload: map[string]any{"location": map[string]any{"city": "Austin", "state": "TX"}},
			want:    "TX",
		},
		{
			name:    "last segment of street address",
			payload: map[string]any{"location": "123 Main St, Springfield, IL 62704"},
			want:    "IL 62704",
		},
		{
			name:    "pipe separated",
			payload: map[string]any{"location": "Downtown Campus | Ohio"},
			want:    "Ohio",
		},
		{
			name:    "trailing separator ignored",
			payload: map[string]any{"location": "Boston, MA,"},
			want:    "MA",
		},
		{
			name:    "no location",
			payload: map[string]any{},
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveState(tt.payload))
		})
	}
}

func TestRepairDates(t *testing.T) {
	day := func(s string) *time.Time {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			t.Fatalf("bad date %q: %v", s, err)
		}
		return &parsed
	}

	t.Run("deadline after rfp untouched", func(t *testing.T) {
		got, repaired := RepairDates(day("2026-02-01"), day("2026-03-01"))
		assert.False(t, repaired)
		assert.Equal(t, *day("2026-03-01"), *got)
	})

	t.Run("deadline before rfp shifted past it", func(t *testing.T) {
		got, repaired := RepairDates(day("2026-02-01"), day("2026-01-15"))
		assert.True(t, repaired)
		assert.Equal(t, *day("2026-02-02"), *got)
	})

	t.Run("equal dates shifted", func(t *testing.T) {
		got, repaired := RepairDates(day("2026-02-01"), day("2026-02-01"))
		assert.True(t, repaired)
		assert.Equal(t, *day("2026-02-02"), *got)
	})

	t.Run("missing rfp leaves deadline alone", func(t *testing.T) {
		got, repaired := RepairDates(nil, day("2026-01-01"))
		assert.False(t, repaired)
		assert.Equal(t, *day("2026-01-01"), *got)
	})

	t.Run("missing deadline stays nil", func(t *testing.T) {
		got, repaired := RepairDates(day("2026-02-01"), nil)
		assert.False(t, repaired)
		assert.Nil(t, got)
	})
}

func TestParsePayloadDate(t *testing.T) {
	got := ParsePayloadDate(map[string]any{"deadline": "2026-03-01"}, "deadline")
	if assert.NotNil(t, got) {
		assert.Equal(t, 2026, got.Year())
		assert.Equal(t, time.March, got.Month())
	}

	assert.Nil(t, ParsePayloadDate(map[string]any{"deadline": "soon"}, "deadline"))
	assert.Nil(t, ParsePayloadDate(map[string]any{}, "deadline"))
}
