package server

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/quartz"
)

// WaitForHealthy polls the /health endpoint until it returns 200 OK or the
// context is cancelled. baseURL is the server's base URL, e.g.
// "http://localhost:8080".
func WaitForHealthy(ctx context.Context, clock quartz.Clock, baseURL string) error {
	healthURL := baseURL + "/health"
	client := &http.Client{Timeout: 1 * time.Second}

	ticker := clock.NewTicker(50*time.Millisecond, "server", "health")
	defer ticker.Stop()

	for {
		if healthy(ctx, client, healthURL) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func healthy(ctx context.Context, client *http.Client, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
