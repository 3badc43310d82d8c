package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deal-hand/models"
	"deal-hand/providers"
)

func TestCandidateFromFiling(t *testing.T) {
	f := providers.RawFiling{
		Acquirer:        " Acme Corp ",
		ValueUSD:        int64Ptr(2_500_000_000),
		AnnouncedDate:   "2024-03-15",
		SourceURL:       "https://www.sec.gov/Archives/edgar/data/123/000124000001",
		AccessionNumber: "0001-24-000001",
		FormType:        "8-K",
		Description:     "Merger agreement with semiconductor maker",
	}

	deal := CandidateFromFiling(f)

	assert.Equal(t, "Acme Corp", deal.Acquirer)
	assert.Equal(t, "Unknown Target", deal.Target)
	assert.Equal(t, int64(2_500_000_000), *deal.ValueUSD)
	assert.Equal(t, models.StatusAnnounced, deal.Status)
	assert.Equal(t, ParseDate("2024-03-15"), deal.AnnouncedDate)
	assert.Equal(t, "Technology", deal.Sector)
	assert.Equal(t, "North America", deal.Geography)
	assert.Equal(t, f.Description, deal.Synopsis)
	assert.Equal(t, []models.Source{{URL: f.SourceURL, Publication: "SEC EDGAR", Type: models.SourceTypeSECEdgar}}, deal.Sources)
}

func TestCandidateFromFilingWithoutValueOrURL(t *testing.T) {
	deal := CandidateFromFiling(providers.RawFiling{Acquirer: "Acme", Target: "Globex", ValueUSD: int64Ptr(0)})

	assert.Equal(t, "Globex", deal.Target)
	assert.Nil(t, deal.ValueUSD)
	assert.Empty(t, deal.Sources)
	assert.False(t, deal.HasDate())
	assert.Equal(t, "Diversified", deal.Sector)
}

func TestCandidatesFromDiscovery(t *testing.T) {
	result := providers.DiscoveryResult{Deals: []providers.RawDeal{
		{
			Acquirer:         "Broadcom",
			Target:           "VMware",
			ValueUSD:         json.RawMessage(`61000000000`),
			Status:           "pending regulatory approval",
			AnnouncedDate:    "2022-05-26",
			Sector:           "Technology",
			Geography:        "North America",
			PaymentStructure: "Cash and stock",
			BreakupFee:       json.RawMessage(`"$1.5 billion"`),
			TargetDomain:     "vmware.com",
			Sources: []providers.RawSource{
				{URL: "https://reuters.com/a", Publication: "Reuters"},
				{URL: "", Publication: "Empty"},
				{URL: "https://example.org/b"},
			},
		},
		{
			Acquirer: "Siemens",
			Target:   "Altair",
			ValueUSD: json.RawMessage(`"10.6 billion"`),
		},
		{Acquirer: "  ", Target: ""},
		{Acquirer: "Acme", Target: "Globex", ValueUSD: json.RawMessage(`"undisclosed"`)},
	}}

	deals := CandidatesFromDiscovery(result, "Europe", models.SourceTypePerplexity)

	require.Len(t, deals, 3)

	first := deals[0]
	assert.Equal(t, int64(61_000_000_000), *first.ValueUSD)
	assert.Equal(t, models.StatusPending, first.Status)
	assert.Equal(t, "North America", first.Geography)
	assert.Equal(t, "Cash and stock", first.PaymentStructure)
	assert.Equal(t, int64(1_500_000_000), *first.BreakupFee)
	assert.Equal(t, "vmware.com", first.TargetDomain)
	assert.Equal(t, []models.Source{
		{URL: "https://reuters.com/a", Publication: "Reuters", Type: models.SourceTypePerplexity},
		{URL: "https://example.org/b", Publication: "Unknown Source", Type: models.SourceTypePerplexity},
	}, first.Sources)

	second := deals[1]
	assert.Equal(t, int64(10_600_000_000), *second.ValueUSD)
	assert.Equal(t, "Europe", second.Geography)
	assert.Equal(t, models.StatusAnnounced, second.Status)
	assert.False(t, second.HasDate())

	assert.Nil(t, deals[2].ValueUSD)
}

func TestCoerceValue(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *int64
	}{
		{"number", `5000000000`, int64Ptr(5_000_000_000)},
		{"float number", `2.5e9`, int64Ptr(2_500_000_000)},
		{"text", `"750 million"`, int64Ptr(750_000_000)},
		{"negative", `-5`, nil},
		{"zero", `0`, nil},
		{"null", `null`, nil},
		{"missing", ``, nil},
		{"empty text", `""`, nil},
		{"bool", `true`, nil},
		{"unparseable text", `"n/a"`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CoerceValue(json.RawMessage(tt.raw)))
		})
	}
}
