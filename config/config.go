package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Verifikations-Backends
const (
	VerifierPerplexity = "perplexity"
	VerifierAnthropic  = "anthropic"
	VerifierNone       = "none"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 */6 * * *"`

	// Quellen-Konfiguration
	EnabledSources string `envconfig:"ENABLED_SOURCES" default:"sec_edgar,perplexity"`

	// Pipeline-Parameter
	MaterialityThresholdUSD int64         `envconfig:"MATERIALITY_THRESHOLD_USD" default:"500000000"`
	ExternalCallBudget      int           `envconfig:"EXTERNAL_CALL_BUDGET" default:"5"`
	DaysBack                int           `envconfig:"DAYS_BACK" default:"90"`
	VerifyTimeout           time.Duration `envconfig:"VERIFY_TIMEOUT" default:"30s"`
	VerifyInterval          time.Duration `envconfig:"VERIFY_INTERVAL" default:"200ms"`
	VerifierBackend         string        `envconfig:"VERIFIER_BACKEND" default:"perplexity"`

	SECEdgarBaseURL string `envconfig:"SEC_EDGAR_BASE_URL" default:"https://efts.sec.gov/LATEST/search-index"`
	SECUserAgent    string `envconfig:"SEC_USER_AGENT" default:"deal-hand (contact@example.com)"`
	SECQueries      string `envconfig:"SEC_QUERIES" default:"merger agreement,acquisition agreement,business combination,tender offer"`
	SECForms        string `envconfig:"SEC_FORMS" default:"8-K,S-4,DEFM14A"`
	SECPageSize     int    `envconfig:"SEC_PAGE_SIZE" default:"50"`

	PerplexityAPIKey  string        `envconfig:"PERPLEXITY_API_KEY"`
	PerplexityBaseURL string        `envconfig:"PERPLEXITY_BASE_URL" default:"https://api.perplexity.ai/chat/completions"`
	PerplexityModel   string        `envconfig:"PERPLEXITY_MODEL" default:"llama-3.1-sonar-small-128k-online"`
	DiscoveryRegions  string        `envconfig:"DISCOVERY_REGIONS" default:"United States,Europe,Asia Pacific"`
	DiscoveryInterval time.Duration `envconfig:"DISCOVERY_INTERVAL" default:"500ms"`

	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`
	AnthropicModel  string `envconfig:"ANTHROPIC_MODEL" default:"claude-3-5-haiku-20241022"`

	// Logo-Suche für Unternehmen
	LogoLookupEnabled bool   `envconfig:"LOGO_LOOKUP_ENABLED" default:"true"`
	LogoServices      string `envconfig:"LOGO_SERVICES" default:"https://logo.clearbit.com/%s,https://www.google.com/s2/favicons?domain=%s&sz=128,https://icon.horse/icon/%s"`

	// Archiv der Sync-Läufe (optional, leerer Bucket = deaktiviert)
	ArchiveS3URL    string `envconfig:"ARCHIVE_S3_URL"`
	ArchiveS3Region string `envconfig:"ARCHIVE_S3_REGION" default:"eu-central-1"`
	ArchiveS3Key    string `envconfig:"ARCHIVE_S3_KEY"`
	ArchiveS3Secret string `envconfig:"ARCHIVE_S3_SECRET"`
	ArchiveS3Bucket string `envconfig:"ARCHIVE_S3_BUCKET"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &c, nil
}

// Validate prüft die Konsistenz der Pipeline-Parameter.
func (c *Config) Validate() error {
	if c.MaterialityThresholdUSD <= 0 {
		return fmt.Errorf("MATERIALITY_THRESHOLD_USD must be > 0")
	}
	if c.ExternalCallBudget < 0 {
		return fmt.Errorf("EXTERNAL_CALL_BUDGET must be >= 0")
	}
	if c.DaysBack < 1 {
		return fmt.Errorf("DAYS_BACK must be >= 1")
	}
	if c.VerifyTimeout <= 0 {
		return fmt.Errorf("VERIFY_TIMEOUT must be > 0")
	}
	if c.VerifyInterval < 0 {
		return fmt.Errorf("VERIFY_INTERVAL must be >= 0")
	}
	switch c.VerifierBackend {
	case VerifierPerplexity:
		if strings.TrimSpace(c.PerplexityAPIKey) == "" {
			return fmt.Errorf("VERIFIER_BACKEND=perplexity requires PERPLEXITY_API_KEY")
		}
	case VerifierAnthropic:
		if strings.TrimSpace(c.AnthropicAPIKey) == "" {
			return fmt.Errorf("VERIFIER_BACKEND=anthropic requires ANTHROPIC_API_KEY")
		}
	case VerifierNone:
	default:
		return fmt.Errorf("unknown VERIFIER_BACKEND %q", c.VerifierBackend)
	}
	for _, name := range c.EnabledSourceList() {
		if name != "sec_edgar" && name != "perplexity" {
			return fmt.Errorf("unknown source %q in ENABLED_SOURCES", name)
		}
	}
	return nil
}

// EnabledSourceList gibt die aktivierten Quellen in Konfigurationsreihenfolge zurück.
func (c *Config) EnabledSourceList() []string {
	return splitList(c.EnabledSources)
}

// RegionList gibt die Regionen für die Deal-Suche zurück.
func (c *Config) RegionList() []string {
	return splitList(c.DiscoveryRegions)
}

// SECQueryList gibt die Suchphrasen für SEC EDGAR zurück.
func (c *Config) SECQueryList() []string {
	return splitList(c.SECQueries)
}

// LogoServiceList gibt die URL-Vorlagen der Logo-Dienste zurück.
func (c *Config) LogoServiceList() []string {
	return splitList(c.LogoServices)
}

// ArchiveEnabled meldet, ob Sync-Läufe nach S3 archiviert werden.
func (c *Config) ArchiveEnabled() bool {
	return strings.TrimSpace(c.ArchiveS3Bucket) != ""
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
