package logo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"deal-hand/config"
)

const probeTimeout = 3 * time.Second

var httpClient = &http.Client{Timeout: 10 * time.Second}

// Fetcher sucht Firmenlogos über öffentliche Favicon-Dienste.
type Fetcher struct {
	Services []string // URL-Vorlagen mit %s für die Domain
	Logger   *zap.Logger
	Client   *http.Client
	Timeout  time.Duration
}

// NewFetcher erstellt einen Logo-Fetcher mit den konfigurierten Diensten.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		Services: cfg.LogoServiceList(),
		Logger:   logger,
		Client:   httpClient,
		Timeout:  probeTimeout,
	}
}

// FindLogo prüft die Dienste der Reihe nach per HEAD und gibt die erste erreichbare URL zurück.
// Findet keiner ein Logo, ist das Ergebnis leer und kein Fehler.
func (f *Fetcher) FindLogo(ctx context.Context, domain string) (string, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return "", nil
	}
	log := f.Logger.With(zap.String("domain", domain))

	for _, tmpl := range f.Services {
		candidate := fmt.Sprintf(tmpl, url.QueryEscape(domain))
		ok, err := f.probe(ctx, candidate)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			log.Debug("Logo-Dienst nicht erreichbar", zap.String("url", candidate), zap.Error(err))
			continue
		}
		if ok {
			log.Info("Logo gefunden", zap.String("url", candidate))
			return candidate, nil
		}
	}
	log.Debug("Kein Logo gefunden")
	return "", nil
}

func (f *Fetcher) probe(ctx context.Context, target string) (bool, error) {
	probeCtx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, target, nil)
	if err != nil {
		return false, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return false, err
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}
