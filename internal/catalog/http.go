package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	logx "wabbabot/pkg/logx"
)

type HTTPConfig struct {
	URL     string
	Timeout time.Duration
}

// HTTPClient fetches the catalog JSON over HTTP. It owns its http.Client;
// the request timeout lives here, not in the dispatcher.
type HTTPClient struct {
	cfg  HTTPConfig
	http *http.Client
	log  logx.Logger
}

func NewHTTPClient(cfg HTTPConfig, log logx.Logger) (*HTTPClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("catalog url is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		log:  log,
	}, nil
}

func (c *HTTPClient) FetchAll(ctx context.Context) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %s", ErrUnavailable, resp.Status)
	}

	var entries []Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	c.log.Debug("catalog fetched", logx.Int("entries", len(entries)), logx.Duration("took", time.Since(start)))
	return entries, nil
}

func (c *HTTPClient) Fetch(ctx context.Context, machineID string) (Entry, error) {
	entries, err := c.FetchAll(ctx)
	if err != nil {
		return Entry{}, err
	}
	for _, e := range entries {
		if e.MachineURL == machineID {
			return e, nil
		}
	}
	return Entry{}, ErrNotFound
}
