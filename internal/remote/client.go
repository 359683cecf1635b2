// Package remote implements the viewer's collaborator contracts over the
// part-management backend's REST API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/frc3322/aerie-partview/internal/viewer"
)

// Client talks to the part-management backend. It implements
// viewer.ManifestService, viewer.ViewService, viewer.ModelSource and
// viewer.ViewUploader.
type Client struct {
	base *url.URL
	http *http.Client
	log  *zap.Logger
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL %s: %w", baseURL, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		base: u,
		http: &http.Client{Timeout: timeout},
		log:  log,
	}, nil
}

// manifestResponse mirrors the backend's view manifest JSON.
type manifestResponse struct {
	HasViews  bool `json:"has_views"`
	ViewCount int  `json:"view_count"`
}

// ViewManifest reports whether pre-rendered views exist for a part.
func (c *Client) ViewManifest(ctx context.Context, part viewer.PartID) (viewer.Manifest, error) {
	body, err := c.get(ctx, c.endpoint("api", "parts", string(part), "views"))
	if err != nil {
		return viewer.Manifest{}, err
	}

	var m manifestResponse
	if err := json.Unmarshal(body, &m); err != nil {
		return viewer.Manifest{}, fmt.Errorf("decoding manifest: %w", err)
	}
	return viewer.Manifest{HasViews: m.HasViews, ViewCount: m.ViewCount}, nil
}

// View fetches one pre-rendered view image.
func (c *Client) View(ctx context.Context, part viewer.PartID, index int) ([]byte, error) {
	return c.get(ctx, c.endpoint("api", "parts", string(part), "views", fmt.Sprint(index)))
}

// ModelBytes fetches the raw model file for a part.
func (c *Client) ModelBytes(ctx context.Context, part viewer.PartID) ([]byte, error) {
	return c.get(ctx, c.endpoint("api", "parts", string(part), "model"))
}

// UploadViews submits a full rendered view set as a multipart form, one
// PNG per view field.
func (c *Client) UploadViews(ctx context.Context, part viewer.PartID, views [][]byte) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for i, view := range views {
		fw, err := mw.CreateFormFile(fmt.Sprintf("view%d", i), fmt.Sprintf("view%d.png", i))
		if err != nil {
			return fmt.Errorf("building upload form: %w", err)
		}
		if _, err := fw.Write(view); err != nil {
			return fmt.Errorf("building upload form: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("building upload form: %w", err)
	}

	endpoint := c.endpoint("api", "parts", string(part), "views")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("uploading views: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("uploading views: unexpected status %s", resp.Status)
	}
	c.log.Debug("views uploaded", zap.String("part", string(part)), zap.Int("views", len(views)))
	return nil
}

// get performs a GET and returns the body, mapping 404 to ErrNotFound.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, viewer.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("GET %s: unexpected status %s", endpoint, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) endpoint(parts ...string) string {
	return c.base.JoinPath(parts...).String()
}
