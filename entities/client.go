package entities

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/autom8ter/notify"
	"github.com/autom8ter/notify/errors"
	"github.com/autom8ter/notify/util"
)

// Client is a read-only client for the entity metadata API, used as the cache-miss
// fallback when resolving notification destinations.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient returns a metadata API client. A nil http client falls back to
// http.DefaultClient.
func NewClient(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
}

type page struct {
	Metadata struct {
		TotalCount int `json:"totalCount"`
	} `json:"metadata"`
	Data []json.RawMessage `json:"data"`
}

// FindByName fetches the entity definition with the given name. It returns the raw
// metadata document so callers can treat it exactly like a metadata-change event, or
// nil when no entity matches.
func (c *Client) FindByName(ctx context.Context, name string) (*notify.Document, error) {
	filter := url.QueryEscape(fmt.Sprintf(`{"name":%s}`, util.JSONString(name)))
	endpoint := fmt.Sprintf("%s/v1/entities/?filter=%s", c.baseURL, filter)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.Validation, "bad metadata endpoint: %s", endpoint)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.Unavailable, "entity lookup failed: %s", name)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, errors.New(errors.Internal, "entity lookup for %s responded %d", name, resp.StatusCode)
	}
	var result page
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, errors.Validation, "malformed entity page for %s", name)
	}
	if result.Metadata.TotalCount == 0 || len(result.Data) == 0 {
		return nil, nil
	}
	return notify.NewDocumentFromBytes(result.Data[0])
}
