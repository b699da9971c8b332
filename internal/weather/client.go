// Package weather fetches the daily spraying conditions for a field from an
// Open-Meteo compatible forecast API.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sprayDispatch/models"
)

var (
	ErrBadStatusCode = errors.New("invalid status code from weather provider")
	ErrNoData        = errors.New("weather provider returned no data for the date")
)

// HTTPClient is satisfied by *http.Client.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Conditions is the forecast for one day at one place.
type Conditions struct {
	Date        string  `json:"date"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"windSpeed"`
	WeatherCode int     `json:"weatherCode"`
}

type Client struct {
	httpClient HTTPClient
	baseURL    string
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

func WithHTTPClient(h HTTPClient) Option {
	return func(c *Client) { c.httpClient = h }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    "https://api.open-meteo.com/v1/forecast",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type forecastResponse struct {
	Daily struct {
		Time        []string   `json:"time"`
		Temperature []*float64 `json:"temperature_2m_max"`
		Humidity    []*float64 `json:"relative_humidity_2m_mean"`
		WindSpeed   []*float64 `json:"wind_speed_10m_max"`
		WeatherCode []*int     `json:"weather_code"`
	} `json:"daily"`
}

// Lookup returns the conditions at loc on date (YYYY-MM-DD).
func (c *Client) Lookup(ctx context.Context, loc models.Coordinates, date string) (*Conditions, error) {
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: date %q", models.ErrValidation, date)
	}
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', 4, 64))
	q.Set("daily", strings.Join([]string{"temperature_2m_max", "relative_humidity_2m_mean", "wind_speed_10m_max", "weather_code"}, ","))
	q.Set("timezone", "auto")
	q.Set("start_date", date)
	q.Set("end_date", date)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Add("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrBadStatusCode, resp.StatusCode)
	}

	var fr forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return nil, err
	}
	d := fr.Daily
	i := indexOf(d.Time, date)
	if i < 0 || i >= len(d.Temperature) || i >= len(d.Humidity) || i >= len(d.WindSpeed) || i >= len(d.WeatherCode) {
		return nil, ErrNoData
	}
	if d.Temperature[i] == nil || d.Humidity[i] == nil || d.WindSpeed[i] == nil || d.WeatherCode[i] == nil {
		return nil, ErrNoData
	}
	return &Conditions{
		Date:        date,
		Temperature: *d.Temperature[i],
		Humidity:    *d.Humidity[i],
		WindSpeed:   *d.WindSpeed[i],
		WeatherCode: *d.WeatherCode[i],
	}, nil
}

func indexOf(xs []string, want string) int {
	for i, x := range xs {
		if x == want {
			return i
		}
	}
	return -1
}
