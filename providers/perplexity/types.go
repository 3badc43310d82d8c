package perplexity

import (
	"encoding/json"
	"net/url"
	"strings"
)

// ChatMessage ist eine Nachricht im Chat-Completions-Format.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest ist der Request-Body für /chat/completions.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

// ChatResponse enthält die benötigten Felder der Antwort.
type ChatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

// Content gibt den Text der ersten Antwort zurück.
func (r ChatResponse) Content() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// discoveryPayload ist das JSON, das das Modell bei der Deal-Suche liefern soll.
type discoveryPayload struct {
	Deals []discoveredDeal `json:"deals"`
}

type discoveredDeal struct {
	Acquirer         string          `json:"acquirer"`
	Target           string          `json:"target"`
	ValueUSD         json.RawMessage `json:"value_usd"`
	Status           string          `json:"status"`
	AnnouncedDate    string          `json:"announced_date"`
	Sector           string          `json:"sector"`
	Geography        string          `json:"geography"`
	Synopsis         string          `json:"synopsis"`
	Rationale        string          `json:"rationale"`
	PaymentStructure string          `json:"payment_structure"`
	BreakupFee       json.RawMessage `json:"breakup_fee"`
	AcquirerDomain   string          `json:"acquirer_domain"`
	TargetDomain     string          `json:"target_domain"`
}

// verificationPayload ist das JSON, das das Modell bei der Verifikation liefern soll.
type verificationPayload struct {
	Verified      bool            `json:"verified"`
	ValueUSD      json.RawMessage `json:"value_usd"`
	Status        string          `json:"status"`
	AnnouncedDate string          `json:"announced_date"`
	Synopsis      string          `json:"synopsis"`
}

var publicationNames = map[string]string{
	"reuters.com":       "Reuters",
	"bloomberg.com":     "Bloomberg",
	"ft.com":            "Financial Times",
	"wsj.com":           "Wall Street Journal",
	"sec.gov":           "SEC EDGAR",
	"cnbc.com":          "CNBC",
	"businesswire.com":  "Business Wire",
	"prnewswire.com":    "PR Newswire",
	"globenewswire.com": "GlobeNewswire",
}

// PublicationName leitet aus einer URL den Namen der Publikation ab.
func PublicationName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "Unknown Source"
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if name, ok := publicationNames[host]; ok {
		return name
	}
	return host
}

// StripCodeFence entfernt Markdown-Codeblöcke um eine JSON-Antwort.
func StripCodeFence(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
