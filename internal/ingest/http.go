package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"contentpipe/internal/services"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "Mozilla/5.0 (compatible; contentpipe/1.0)"
	maxBodyBytes     = 8 << 20
)

// fetcher issues GET requests with a shared client and user agent.
type fetcher struct {
	client    *http.Client
	userAgent string
}

func newFetcher(client *http.Client, userAgent string) fetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return fetcher{client: client, userAgent: userAgent}
}

func (f fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "ingest", "build request", rawURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "ingest", "fetch", rawURL, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "ingest", "read body", rawURL, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, services.Wrap(services.ErrNotFound, "ingest", "fetch", fmt.Sprintf("%s: http 404", rawURL), nil)
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, services.Wrap(services.ErrExternalTool, "ingest", "fetch", fmt.Sprintf("%s: http %d", rawURL, resp.StatusCode), nil)
	}
	return body, nil
}
