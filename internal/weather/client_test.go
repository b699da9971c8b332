package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprayDispatch/models"
)

func TestLookup_ParsesDailyForecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "30.9010", q.Get("latitude"))
		assert.Equal(t, "75.8573", q.Get("longitude"))
		assert.Equal(t, "2026-03-18", q.Get("start_date"))
		assert.Contains(t, q.Get("daily"), "wind_speed_10m_max")
		_, _ = w.Write([]byte(`{"daily":{"time":["2026-03-18"],"temperature_2m_max":[29.5],
			"relative_humidity_2m_mean":[41],"wind_speed_10m_max":[11.2],"weather_code":[3]}}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	got, err := c.Lookup(context.Background(), models.Coordinates{Latitude: 30.9010, Longitude: 75.8573}, "2026-03-18")
	require.NoError(t, err)
	assert.Equal(t, &Conditions{Date: "2026-03-18", Temperature: 29.5, Humidity: 41, WindSpeed: 11.2, WeatherCode: 3}, got)
}

func TestLookup_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("start_date") {
		case "2026-03-19":
			_, _ = w.Write([]byte(`{"daily":{"time":["2026-03-19"],"temperature_2m_max":[null],
				"relative_humidity_2m_mean":[41],"wind_speed_10m_max":[11.2],"weather_code":[3]}}`))
		case "2026-03-20":
			_, _ = w.Write([]byte(`{"daily":{"time":[]}}`))
		default:
			w.WriteHeader(http.StatusTooManyRequests)
		}
	}))
	t.Cleanup(srv.Close)
	c := NewClient(WithBaseURL(srv.URL))
	loc := models.Coordinates{Latitude: 30, Longitude: 75}

	_, err := c.Lookup(context.Background(), loc, "2026-03-18")
	assert.ErrorIs(t, err, ErrBadStatusCode)
	_, err = c.Lookup(context.Background(), loc, "2026-03-19")
	assert.ErrorIs(t, err, ErrNoData)
	_, err = c.Lookup(context.Background(), loc, "2026-03-20")
	assert.ErrorIs(t, err, ErrNoData)
	_, err = c.Lookup(context.Background(), loc, "18/03/2026")
	assert.ErrorIs(t, err, models.ErrValidation)
}
