package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPSink POSTs position batches as a JSON array to a collector endpoint.
// The X-Server-Name and X-Port-Number headers tell the collector which
// race server and port the batch came from.
type HTTPSink struct {
	endpoint   string
	serverName string
	port       int
	client     *http.Client
}

// NewHTTPSink creates a sink for the given collector endpoint. timeout
// bounds each POST; the collector is best-effort and a slow endpoint must
// not back up the batcher.
func NewHTTPSink(endpoint, serverName string, port int, timeout time.Duration) *HTTPSink {
	if timeout <= 0 {
		timeout = 300 * time.Millisecond
	}
	return &HTTPSink{
		endpoint:   endpoint,
		serverName: serverName,
		port:       port,
		client:     &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSink) Name() string { return "http" }

// Publish sends one batch.
func (s *HTTPSink) Publish(ctx context.Context, batch []Position) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Server-Name", s.serverName)
	req.Header.Set("X-Port-Number", fmt.Sprintf("%d", s.port))

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post batch: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("collector returned %s", resp.Status)
	}
	return nil
}
