package logo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"deal-hand/config"
)

func logoServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/missing/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/slow/", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})
	mux.HandleFunc("/found/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestFetcher(services ...string) *Fetcher {
	f := NewFetcher(&config.Config{}, zap.NewNop())
	f.Services = services
	f.Timeout = 50 * time.Millisecond
	return f
}

func TestFindLogo(t *testing.T) {
	server := logoServer(t)
	f := newTestFetcher(server.URL+"/missing/%s", server.URL+"/slow/%s", server.URL+"/found/%s")

	logoURL, err := f.FindLogo(context.Background(), "acme.com")

	require.NoError(t, err)
	assert.Equal(t, server.URL+"/found/acme.com", logoURL)
}

func TestFindLogoNothingFound(t *testing.T) {
	server := logoServer(t)
	f := newTestFetcher(server.URL+"/missing/%s")

	logoURL, err := f.FindLogo(context.Background(), "acme.com")

	require.NoError(t, err)
	assert.Empty(t, logoURL)
}

func TestFindLogoEmptyDomain(t *testing.T) {
	f := newTestFetcher("http://127.0.0.1:1/%s")

	logoURL, err := f.FindLogo(context.Background(), "  ")

	require.NoError(t, err)
	assert.Empty(t, logoURL)
}

func TestFindLogoCancelled(t *testing.T) {
	server := logoServer(t)
	f := newTestFetcher(server.URL + "/found/%s")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.FindLogo(ctx, "acme.com")

	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewFetcherUsesConfiguredServices(t *testing.T) {
	f := NewFetcher(&config.Config{LogoServices: "https://a.example/%s, https://b.example/%s"}, zap.NewNop())
	assert.Equal(t, []string{"https://a.example/%s", "https://b.example/%s"}, f.Services)
	assert.Equal(t, probeTimeout, f.Timeout)
}
