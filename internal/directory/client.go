package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/auditline-platform/auditline/internal/config"
)

// HTTPClient implements Directory against the directory service's REST API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(cfg config.DirectoryConfig) *HTTPClient {
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type domainRecord struct {
	DomainID string `json:"id"`
	Owner    string `json:"owner"`
}

func (c *HTTPClient) UserInfo(ctx context.Context, userID string) (*UserInfo, error) {
	var info UserInfo
	err := c.get(ctx, "/users/"+url.PathEscape(userID), &info, ErrUserNotFound)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// IsDomainAdmin resolves the domain record and compares its owner with the
// user. The directory models exactly one admin per domain: the owner.
func (c *HTTPClient) IsDomainAdmin(ctx context.Context, userID, domainID string) (bool, error) {
	var rec domainRecord
	err := c.get(ctx, "/domains/"+url.PathEscape(domainID), &rec, ErrDomainNotFound)
	if err != nil {
		return false, err
	}
	return rec.Owner == userID, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, out any, notFound error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building directory request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling directory %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return notFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("directory %s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding directory response from %s: %w", path, err)
	}
	return nil
}
