package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"deal-hand/config"
	"deal-hand/providers"
)

// verificationPayload ist das JSON, das das Modell liefern soll.
type verificationPayload struct {
	Verified      bool            `json:"verified"`
	ValueUSD      json.RawMessage `json:"value_usd"`
	Status        string          `json:"status"`
	AnnouncedDate string          `json:"announced_date"`
	Synopsis      string          `json:"synopsis"`
	Sources       []string        `json:"sources"`
}

// Verifier prüft Deals über die Anthropic Messages API.
type Verifier struct {
	client anthropic.Client
	model  string
	Logger *zap.Logger
}

// NewVerifier erstellt einen Verifier. Zusätzliche Optionen (z.B. option.WithBaseURL) werden
// an den Client durchgereicht.
func NewVerifier(cfg *config.Config, logger *zap.Logger, opts ...option.RequestOption) *Verifier {
	opts = append([]option.RequestOption{option.WithAPIKey(cfg.AnthropicAPIKey)}, opts...)
	return &Verifier{
		client: anthropic.NewClient(opts...),
		model:  cfg.AnthropicModel,
		Logger: logger,
	}
}

// Name gibt den Namen des Providers zurück, zugleich der Quellentyp.
func (v *Verifier) Name() string {
	return "anthropic"
}

// DisplayName ist der Publikationsname für Verifikationsquellen.
func (v *Verifier) DisplayName() string {
	return "Anthropic"
}

// Verify fragt das Modell, ob der Deal real ist. Quellen sind die URLs, die das Modell nennt.
func (v *Verifier) Verify(ctx context.Context, acquirer, target string, approxDate time.Time) (*providers.VerificationResult, error) {
	resp, err := v.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(v.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(acquirer, target, approxDate))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	payload, err := parsePayload(text.String())
	if err != nil {
		return nil, err
	}
	v.Logger.Debug("Anthropic-Verifikation",
		zap.String("acquirer", acquirer),
		zap.String("target", target),
		zap.Bool("verified", payload.Verified))

	var sources []string
	for _, s := range payload.Sources {
		if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
			sources = append(sources, s)
		}
	}
	return &providers.VerificationResult{
		Verified: payload.Verified,
		Details: &providers.VerificationDetails{
			ValueUSD:      payload.ValueUSD,
			Status:        payload.Status,
			AnnouncedDate: payload.AnnouncedDate,
			Synopsis:      payload.Synopsis,
		},
		Sources: sources,
	}, nil
}

// parsePayload liest das JSON aus der Antwort, auch wenn es in Codeblöcke oder Text eingebettet ist.
func parsePayload(text string) (verificationPayload, error) {
	var payload verificationPayload
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		s = s[start : end+1]
	}
	if err := json.Unmarshal([]byte(s), &payload); err != nil {
		return payload, fmt.Errorf("parsing anthropic verification response: %w", err)
	}
	return payload, nil
}

func buildPrompt(acquirer, target string, approxDate time.Time) string {
	date := "unknown"
	if !approxDate.IsZero() {
		date = approxDate.Format("2006-01-02")
	}
	return fmt.Sprintf(`Verify this M&A deal:
- Acquirer: %s
- Target: %s
- Approximate announcement date: %s

Answer only if you are confident the deal was publicly announced. Return only JSON:
{
  "verified": true/false,
  "value_usd": number or null,
  "status": "Announced|Pending|Completed|Withdrawn or null",
  "announced_date": "YYYY-MM-DD or null",
  "synopsis": "brief description",
  "sources": ["URLs of press releases or filings that confirm the deal"]
}`, acquirer, target, date)
}
