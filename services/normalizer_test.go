package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"deal-hand/models"
)

func TestNormalizeCompanyName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"corporation suffix", "Microsoft Corporation", "microsoft"},
		{"inc with period", "Apple Inc.", "apple"},
		{"leading the", "The Walt Disney Company", "walt disney company"},
		{"punctuation and whitespace", "  Acme,  Holdings   Ltd ", "acme holdings"},
		{"german ag", "Siemens AG", "siemens"},
		{"s.a.", "Nestlé S.A.", "nestlé"},
		{"plc", "Shell plc", "shell"},
		{"only one suffix", "Foo Co Inc", "foo co"},
		{"trailing comma after suffix", "Globex Corp.,", "globex"},
		{"trailing comma after inc", "Acme Inc.,", "acme"},
		{"corp with period", "Acme Corp.", "acme"},
		{"the and corporation", "The Acme Corporation", "acme"},
		{"fullwidth folded", "Ｔｅｓｌａ Inc", "tesla"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCompanyName(tt.in))
		})
	}
}

func TestNormalizeCompanyNameStable(t *testing.T) {
	inputs := []string{
		"Microsoft Corporation", "The Walt Disney Company", "Activision Blizzard, Inc.", "Nestlé S.A.",
		"Acme Inc.,", "Globex Corp.,", "Acme Corp.", "The Acme Corporation", "Shell plc. ", "Siemens AG,",
	}
	for _, in := range inputs {
		once := NormalizeCompanyName(in)
		assert.Equal(t, once, NormalizeCompanyName(once), in)
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want models.Status
	}{
		{"Deal completed in March", models.StatusCompleted},
		{"closed", models.StatusCompleted},
		{"Finalized", models.StatusCompleted},
		{"Pending regulatory approval", models.StatusPending},
		{"under review", models.StatusPending},
		{"Withdrawn", models.StatusWithdrawn},
		{"terminated by both parties", models.StatusWithdrawn},
		{"rumored talks", models.StatusRumored},
		{"market speculation", models.StatusRumored},
		{"completed after regulatory review", models.StatusCompleted},
		{"cancelled, litigation pending", models.StatusPending},
		{"Announced", models.StatusAnnounced},
		{"", models.StatusAnnounced},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseStatus(tt.in))
		})
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   int64
		wantOK bool
	}{
		{"billion", "$5.2 billion", 5_200_000_000, true},
		{"million", "750 million", 750_000_000, true},
		{"bn shorthand", "€1.5bn", 1_500_000_000, true},
		{"trillion", "2 trillion", 2_000_000_000_000, true},
		{"uppercase B", "USD 3.4B", 3_400_000_000, true},
		{"mixed with commas", "$45,000 million", 45_000_000_000, true},
		{"M suffix", "about 12 M", 12_000_000, true},
		{"small bare number is billions", "750", 750_000_000_000, true},
		{"large bare number is usd", "2,500,000", 2_500_000, true},
		{"middle band unchanged", "1500", 1500, true},
		{"not a number", "n/a", 0, false},
		{"empty", "", 0, false},
		{"currency only", "$", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseValue(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectSector(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Cloud software provider", "Technology"},
		{"Pharmaceutical manufacturer", "Healthcare"},
		{"Regional bank", "Financial Services"},
		{"Oil and gas producer", "Energy"},
		{"Copper mine operator", "Mining & Metals"},
		{"Streaming platform", "Media & Entertainment"},
		// Teilstring-Suche: "retail" enthält "ai"
		{"Retail chain", "Technology"},
		{"Conglomerate", "Diversified"},
		{"", "Diversified"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectSector(tt.in))
		})
	}
}

func TestDetectGeography(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"United States", "North America"},
		{"Headquartered in Germany", "Europe"},
		{"Tokyo, Japan", "Asia Pacific"},
		{"São Paulo, Brazil", "Latin America"},
		{"Dubai", "Middle East"},
		{"Lagos, Nigeria", "Africa"},
		{"", "Global"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectGeography(tt.in))
		})
	}
}

func TestGenerateSlug(t *testing.T) {
	date := time.Date(2022, time.January, 18, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "microsoft-activision-blizzard-202201",
		GenerateSlug("Microsoft Corporation", "Activision Blizzard, Inc.", date))
	assert.Equal(t, "nestl-blue-bottle-coffee-201709",
		GenerateSlug("Nestlé S.A.", "Blue Bottle Coffee", time.Date(2017, time.September, 14, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "acme-globex-", GenerateSlug("Acme", "Globex", time.Time{}))
	assert.Equal(t, "acme-globex-202401", GenerateSlug("Acme Inc", "Globex Corp", ParseDate("2024-01-15")))
	assert.Equal(t, GenerateSlug("Globex Corp", "Initech", ParseDate("2024-01-15")),
		GenerateSlug("Globex Corp.,", "Initech", ParseDate("2024-01-15")))

	long := GenerateSlug(strings.Repeat("verylongname ", 10), strings.Repeat("target ", 10), date)
	assert.Len(t, long, 100)
	assert.NotContains(t, long, "--")

	// gleiche Normalform ergibt gleichen Slug
	assert.Equal(t,
		GenerateSlug("Microsoft", "Activision Blizzard", date),
		GenerateSlug("Microsoft Corp.", "activision blizzard inc", date.AddDate(0, 0, 5)))
}

func TestGenerateTitle(t *testing.T) {
	assert.Equal(t, "Microsoft to Acquire Activision Blizzard", GenerateTitle("Microsoft", "Activision Blizzard"))
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, want, ParseDate("2024-03-15"))
	assert.Equal(t, want, ParseDate("2024-03-15T10:30:00Z"))
	assert.Equal(t, want, ParseDate(" 2024-03-15T22:00:00 "))
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), ParseDate("2024-03"))
	assert.True(t, ParseDate("null").IsZero())
	assert.True(t, ParseDate("").IsZero())
	assert.True(t, ParseDate("15.03.2024").IsZero())
}
