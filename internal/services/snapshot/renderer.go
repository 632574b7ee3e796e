package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang-object-generation/internal/config"
	"golang-object-generation/internal/models"
)

// Renderer turns a binary artifact into a preview image. Failures are never
// retried here; the caller reports "no snapshot available".
type Renderer interface {
	Render(ctx context.Context, artifact []byte) ([]byte, error)
}

// Client posts GLB bytes to an external render service and reads the image
// back.
type Client struct {
	config *config.SnapshotConfig
	client *http.Client
}

func NewClient(cfg *config.SnapshotConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		config: cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Render(ctx context.Context, artifact []byte) ([]byte, error) {
	if c.config.RendererBaseURL == "" {
		return nil, fmt.Errorf("snapshot renderer is not configured")
	}

	params := url.Values{}
	params.Add("size", fmt.Sprintf("%d", c.config.Size))
	params.Add("background", c.config.Background)
	params.Add("format", c.config.Format)
	requestURL := c.config.RendererBaseURL + "/render?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(artifact))
	if err != nil {
		return nil, fmt.Errorf("failed to create render request: %w", err)
	}
	req.Header.Set("Content-Type", models.MimeTypeGLB)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach snapshot renderer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("snapshot renderer returned status %d: %s", resp.StatusCode, string(body))
	}

	image, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read rendered image: %w", err)
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("snapshot renderer returned an empty image")
	}
	return image, nil
}
