// Package geocode turns free text into candidate places with coordinates
// using a Google Places style autocomplete + details API.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"sprayDispatch/models"
)

var (
	ErrBadStatusCode  = errors.New("invalid status code from places provider")
	ErrProviderStatus = errors.New("places provider rejected the request")
)

// HTTPClient is satisfied by *http.Client.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Suggestion is one candidate place. Location is nil when the details
// lookup for it failed.
type Suggestion struct {
	PlaceID     string              `json:"placeId"`
	Description string              `json:"description"`
	Location    *models.Coordinates `json:"location"`
}

type Client struct {
	httpClient  HTTPClient
	baseURL     string
	apiKey      string
	country     string
	concurrency int
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithHTTPClient(h HTTPClient) Option {
	return func(c *Client) { c.httpClient = h }
}

func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithCountry restricts results to an ISO 3166-1 alpha-2 country.
func WithCountry(cc string) Option {
	return func(c *Client) { c.country = strings.ToLower(cc) }
}

// WithConcurrency caps parallel details lookups.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		baseURL:     "https://maps.googleapis.com/maps/api/place",
		country:     "in",
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool { return c.apiKey != "" }

type autocompleteResponse struct {
	Status      string `json:"status"`
	Predictions []struct {
		Description string `json:"description"`
		PlaceID     string `json:"place_id"`
	} `json:"predictions"`
}

type detailsResponse struct {
	Status string `json:"status"`
	Result struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"result"`
}

// Search returns suggestions for input. Blank input or a missing API key
// yield an empty list without touching the network.
func (c *Client) Search(ctx context.Context, input string) ([]Suggestion, error) {
	input = strings.TrimSpace(input)
	if input == "" || !c.Enabled() {
		return []Suggestion{}, nil
	}

	q := url.Values{}
	q.Set("input", input)
	q.Set("key", c.apiKey)
	if c.country != "" {
		q.Set("components", "country:"+c.country)
	}
	var ac autocompleteResponse
	if err := c.getJSON(ctx, "/autocomplete/json", q, &ac); err != nil {
		return nil, fmt.Errorf("autocomplete: %w", err)
	}
	if err := checkStatus(ac.Status); err != nil {
		return nil, fmt.Errorf("autocomplete: %w", err)
	}

	out := make([]Suggestion, len(ac.Predictions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, p := range ac.Predictions {
		i, p := i, p
		out[i] = Suggestion{PlaceID: p.PlaceID, Description: p.Description}
		g.Go(func() error {
			loc, err := c.details(gctx, p.PlaceID)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return nil
			}
			out[i].Location = loc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) details(ctx context.Context, placeID string) (*models.Coordinates, error) {
	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("key", c.apiKey)
	q.Set("fields", "geometry")
	var d detailsResponse
	if err := c.getJSON(ctx, "/details/json", q, &d); err != nil {
		return nil, err
	}
	if d.Status != "OK" {
		return nil, fmt.Errorf("%w: %s", ErrProviderStatus, d.Status)
	}
	loc := d.Result.Geometry.Location
	return &models.Coordinates{Latitude: loc.Lat, Longitude: loc.Lng}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Add("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrBadStatusCode, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func checkStatus(s string) error {
	switch s {
	case "OK", "ZERO_RESULTS", "":
		return nil
	}
	return fmt.Errorf("%w: %s", ErrProviderStatus, s)
}
