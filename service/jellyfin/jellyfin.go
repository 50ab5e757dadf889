// Package jellyfin is a small REST client for the Jellyfin media server
// API, covering the calls a wrapped run needs: audio items, users,
// per-(item, user) play statistics, and primary images.
//
// API reference: https://api.jellyfin.org/
package jellyfin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/wrapped-fm/jellywrapped/models"
)

// itemsResponse wraps the /Items payload.
type itemsResponse struct {
	Items            []models.MediaItem `json:"Items"`
	TotalRecordCount int                `json:"TotalRecordCount"`
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a Jellyfin API client for the given server address
// and API key (Admin Dashboard > API Keys). Requests are paced so a
// statistics fan-out cannot hammer the server.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(20*time.Millisecond), 10),
	}
}

// doRequest issues an authenticated GET against the server. Every
// caller treats a failure as fatal for the run, so errors carry the
// request path and, for bad statuses, the response body.
func (c *Client) doRequest(ctx context.Context, endpoint, accept string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", endpoint, err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("Authorization", fmt.Sprintf("MediaBrowser Token=%q", c.apiKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("jellyfin returned status %d for %s: %s", resp.StatusCode, endpoint, string(body))
	}

	return resp, nil
}

// GetAudioItems retrieves every audio item on the server's filesystem,
// with images enabled so primary cover art can be fetched later.
func (c *Client) GetAudioItems(ctx context.Context) ([]models.MediaItem, error) {
	endpoint := "/Items?locationTypes=FileSystem&recursive=true&includeItemTypes=Audio&enableImages=true"

	resp, err := c.doRequest(ctx, endpoint, "application/json")
	if err != nil {
		return nil, fmt.Errorf("jellyfin items request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var items itemsResponse
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode jellyfin items: %w", err)
	}

	return items.Items, nil
}

// GetUsers retrieves all users known to the server.
func (c *Client) GetUsers(ctx context.Context) ([]models.User, error) {
	resp, err := c.doRequest(ctx, "/Users", "application/json")
	if err != nil {
		return nil, fmt.Errorf("jellyfin users request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var users []models.User
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, fmt.Errorf("failed to decode jellyfin users: %w", err)
	}

	return users, nil
}

// GetUserData retrieves one user's play statistics for one item. A
// wrapped run calls this once for every (item, user) pair; it is by far
// the slowest phase of a run.
func (c *Client) GetUserData(ctx context.Context, itemID, userID string) (models.PlayStats, error) {
	endpoint := fmt.Sprintf("/UserItems/%s/UserData?userId=%s", url.PathEscape(itemID), url.QueryEscape(userID))

	resp, err := c.doRequest(ctx, endpoint, "application/json")
	if err != nil {
		return models.PlayStats{}, fmt.Errorf("jellyfin userdata request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var stats models.PlayStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return models.PlayStats{}, fmt.Errorf("failed to decode userdata for item %s: %w", itemID, err)
	}

	return stats, nil
}

// DownloadImage fetches an item's primary image (album cover) and
// writes it into dir under the item ID, no extension. The filename
// matches what the rendered report references.
func (c *Client) DownloadImage(ctx context.Context, itemID, dir string) error {
	endpoint := fmt.Sprintf("/Items/%s/Images/Primary", url.PathEscape(itemID))

	resp, err := c.doRequest(ctx, endpoint, "image/*")
	if err != nil {
		return fmt.Errorf("jellyfin image request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	out, err := os.Create(filepath.Join(dir, itemID))
	if err != nil {
		return fmt.Errorf("failed to create image file for %s: %w", itemID, err)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("failed to write image for %s: %w", itemID, err)
	}

	return nil
}
