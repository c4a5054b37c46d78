package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"curtailment-alerts/internal/artifact"
)

const defaultListingPath = "/api/forecasts"

// HTTPOptions parameterise the HTTP portal client.
type HTTPOptions struct {
	BaseURL     string
	ListingPath string
	// ExtraListingPaths are additional listing endpoints on the same portal,
	// e.g. an archive page next to the current-forecasts page. Frames are
	// merged in path order.
	ExtraListingPaths []string
	Timeout           time.Duration
	UserAgent         string
}

// HTTPClient talks to portals that expose a JSON listing endpoint alongside
// per-artifact download URLs.
type HTTPClient struct {
	opts    HTTPOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewHTTPClient constructs an HTTP portal client.
func NewHTTPClient(opts HTTPOptions, logger zerolog.Logger) *HTTPClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		opts:    opts,
		logger:  logger.With().Str("component", "portal_http").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

type listingEntry struct {
	Name string `json:"name"`
	Ref  string `json:"ref"`
}

// ListArtifacts fetches every configured listing endpoint, probes the frames
// concurrently and merges them into one candidate set in path order.
func (c *HTTPClient) ListArtifacts(ctx context.Context) ([]artifact.Descriptor, error) {
	if c.baseURL == "" {
		return nil, errors.New("portal base url not configured")
	}

	listingPath := c.opts.ListingPath
	if listingPath == "" {
		listingPath = defaultListingPath
	}
	paths := append([]string{listingPath}, c.opts.ExtraListingPaths...)

	frames := make([][]artifact.Descriptor, 0, len(paths))
	for _, p := range paths {
		frame, err := c.fetchListing(ctx, p)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}

	descriptors := artifact.ProbeListings(frames)
	c.logger.Debug().
		Int("frames", len(frames)).
		Int("candidates", len(descriptors)).
		Msg("portal listing fetched")
	return descriptors, nil
}

func (c *HTTPClient) fetchListing(ctx context.Context, listingPath string) ([]artifact.Descriptor, error) {
	payload, err := c.get(ctx, c.baseURL+listingPath)
	if err != nil {
		return nil, fmt.Errorf("fetch listing %s: %w", listingPath, err)
	}

	var entries []listingEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, fmt.Errorf("decode listing %s: %w", listingPath, err)
	}

	descriptors := make([]artifact.Descriptor, 0, len(entries))
	for i, entry := range entries {
		descriptors = append(descriptors, artifact.Descriptor{
			DisplayText:      entry.Name,
			SequencePosition: i,
			BytesRef:         entry.Ref,
		})
	}
	return descriptors, nil
}

// Fetch downloads the bytes for one descriptor.
func (c *HTTPClient) Fetch(ctx context.Context, desc artifact.Descriptor) (Artifact, error) {
	if desc.BytesRef == "" {
		return Artifact{}, errors.New("descriptor carries no download reference")
	}

	endpoint := desc.BytesRef
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Artifact{}, err
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return Artifact{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Artifact{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Artifact{}, parseHTTPError(resp.StatusCode, raw)
	}

	name := fileNameFrom(resp, endpoint, desc.DisplayText)
	c.logger.Debug().Str("file_name", name).Int("bytes", len(raw)).Msg("artifact downloaded")
	return Artifact{FileName: name, Bytes: raw}, nil
}

func (c *HTTPClient) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}
	return payload, nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json, application/octet-stream")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "lmpwatcher/1.0")
	}
}

// fileNameFrom prefers the Content-Disposition filename, then the URL path,
// then the listing display text.
func fileNameFrom(resp *http.Response, endpoint, fallback string) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := params["filename"]; name != "" {
				return name
			}
		}
	}
	if u, err := url.Parse(endpoint); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" && base != "" {
			return base
		}
	}
	return fallback
}

type errorResponse struct {
	ErrorType   string `json:"errorType"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		switch {
		case apiErr.Description != "":
			return fmt.Errorf("portal error (%d): %s", status, apiErr.Description)
		case apiErr.Message != "":
			return fmt.Errorf("portal error (%d): %s", status, apiErr.Message)
		case apiErr.ErrorType != "":
			return fmt.Errorf("portal error (%d): %s", status, apiErr.ErrorType)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("portal error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("portal error (%d)", status)
}

var _ Client = (*HTTPClient)(nil)
