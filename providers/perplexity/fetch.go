package perplexity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"deal-hand/config"
	"deal-hand/providers"
)

var httpClient = &http.Client{Timeout: 90 * time.Second}

const (
	discoverySystemPrompt    = "You are an M&A research assistant. Return only valid JSON without markdown formatting."
	verificationSystemPrompt = "You are an M&A verification assistant. Return only valid JSON."
)

// Client kapselt die Perplexity-API für Deal-Suche und Verifikation.
type Client struct {
	Config *config.Config
	Logger *zap.Logger
	HTTP   *http.Client
}

// NewClient erstellt einen neuen Perplexity-Client.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{Config: cfg, Logger: logger, HTTP: httpClient}
}

// Name gibt den Namen des Providers zurück, zugleich der Quellentyp.
func (c *Client) Name() string {
	return "perplexity"
}

// DisplayName ist der Publikationsname für Verifikationsquellen.
func (c *Client) DisplayName() string {
	return "Perplexity"
}

// Search sucht Deals einer Region. Ohne API-Key oder bei nicht lesbarer Modellantwort
// gibt es ein leeres Ergebnis; nur Transportfehler werden als Fehler gemeldet.
func (c *Client) Search(ctx context.Context, region string, daysBack int) (providers.DiscoveryResult, error) {
	log := c.Logger.With(zap.String("region", region))
	if c.Config.PerplexityAPIKey == "" {
		log.Warn("Perplexity API-Key nicht konfiguriert")
		return providers.DiscoveryResult{}, nil
	}

	resp, err := c.complete(ctx, discoverySystemPrompt, discoveryPrompt(region, daysBack, c.Config.MaterialityThresholdUSD), 0.1, 4000)
	if err != nil {
		return providers.DiscoveryResult{}, err
	}

	var payload discoveryPayload
	content := resp.Content()
	if err := json.Unmarshal([]byte(StripCodeFence(content)), &payload); err != nil {
		log.Warn("Perplexity-Antwort konnte nicht geparst werden", zap.Error(err), zap.String("content", truncate(content, 500)))
		return providers.DiscoveryResult{}, nil
	}

	sources := make([]providers.RawSource, 0, len(resp.Citations))
	for _, u := range resp.Citations {
		sources = append(sources, providers.RawSource{URL: u, Publication: PublicationName(u)})
	}

	result := providers.DiscoveryResult{Citations: resp.Citations}
	for _, d := range payload.Deals {
		geography := d.Geography
		if geography == "" {
			geography = region
		}
		result.Deals = append(result.Deals, providers.RawDeal{
			Acquirer:         d.Acquirer,
			Target:           d.Target,
			ValueUSD:         d.ValueUSD,
			Status:           d.Status,
			AnnouncedDate:    d.AnnouncedDate,
			Sector:           d.Sector,
			Geography:        geography,
			Synopsis:         d.Synopsis,
			Rationale:        d.Rationale,
			PaymentStructure: d.PaymentStructure,
			BreakupFee:       d.BreakupFee,
			AcquirerDomain:   d.AcquirerDomain,
			TargetDomain:     d.TargetDomain,
			Sources:          append([]providers.RawSource(nil), sources...),
		})
	}
	log.Info("Perplexity-Suche abgeschlossen", zap.Int("deals", len(result.Deals)), zap.Int("citations", len(result.Citations)))
	return result, nil
}

// Verify fragt, ob ein Deal real ist. Ohne API-Key gilt der Deal als nicht verifiziert.
func (c *Client) Verify(ctx context.Context, acquirer, target string, approxDate time.Time) (*providers.VerificationResult, error) {
	if c.Config.PerplexityAPIKey == "" {
		return &providers.VerificationResult{Verified: false}, nil
	}

	resp, err := c.complete(ctx, verificationSystemPrompt, verificationPrompt(acquirer, target, approxDate), 0, 1000)
	if err != nil {
		return nil, err
	}

	var payload verificationPayload
	if err := json.Unmarshal([]byte(StripCodeFence(resp.Content())), &payload); err != nil {
		return nil, fmt.Errorf("parsing verification response: %w", err)
	}
	return &providers.VerificationResult{
		Verified: payload.Verified,
		Details: &providers.VerificationDetails{
			ValueUSD:      payload.ValueUSD,
			Status:        payload.Status,
			AnnouncedDate: payload.AnnouncedDate,
			Synopsis:      payload.Synopsis,
		},
		Sources: resp.Citations,
	}, nil
}

func (c *Client) complete(ctx context.Context, system, prompt string, temperature float64, maxTokens int) (*ChatResponse, error) {
	body, err := json.Marshal(ChatRequest{
		Model: c.Config.PerplexityModel,
		Messages: []ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Config.PerplexityBaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Config.PerplexityAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("perplexity api error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	var cr ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("decoding perplexity response: %w", err)
	}
	return &cr, nil
}

func discoveryPrompt(region string, daysBack int, threshold int64) string {
	return fmt.Sprintf(`Find M&A (mergers and acquisitions) deals announced in %[1]s in the last %[2]d days.

Requirements:
- Only include deals with enterprise value over $%[3]d million USD
- Include announced, pending, completed, and rumored deals

For each deal, provide:
1. Acquirer company name
2. Target company name
3. Deal value in USD
4. Status (Announced, Pending, Completed, Rumored)
5. Announcement date (YYYY-MM-DD format)
6. Sector (Technology, Healthcare, Financial Services, Energy, etc.)
7. A brief synopsis (1-2 sentences) and the strategic rationale
8. Payment structure (cash, stock, mixed) and breakup fee in USD if known
9. Web domains of acquirer and target (e.g. "example.com") if known

Return the data as JSON with this structure:
{
  "deals": [
    {
      "acquirer": "Company A",
      "target": "Company B",
      "value_usd": 5000000000,
      "status": "Announced",
      "announced_date": "2025-01-15",
      "sector": "Technology",
      "geography": "%[1]s",
      "synopsis": "Company A announced acquisition of Company B...",
      "rationale": "...",
      "payment_structure": "All cash",
      "breakup_fee": 150000000,
      "acquirer_domain": "companya.com",
      "target_domain": "companyb.com"
    }
  ]
}

Only return valid JSON. Do not include any markdown or explanation.`, region, daysBack, threshold/1_000_000)
}

func verificationPrompt(acquirer, target string, approxDate time.Time) string {
	date := "unknown"
	if !approxDate.IsZero() {
		date = approxDate.Format("2006-01-02")
	}
	return fmt.Sprintf(`Verify this M&A deal:
- Acquirer: %s
- Target: %s
- Approximate announcement date: %s

Is this a real M&A deal? If yes, provide:
1. Confirmed deal value in USD
2. Current status (Announced, Pending, Completed, Withdrawn)
3. Exact announcement date
4. Any updated information

Return JSON:
{
  "verified": true/false,
  "value_usd": number or null,
  "status": "status or null",
  "announced_date": "YYYY-MM-DD or null",
  "synopsis": "brief description"
}`, acquirer, target, date)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
