package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprayDispatch/internal/auth"
	"sprayDispatch/internal/geocode"
	"sprayDispatch/internal/testutil"
	"sprayDispatch/internal/weather"
	"sprayDispatch/models"
)

const (
	testSecret = "test-secret-123"
	testPhone  = "+91 9876543210"
)

type fakeSearcher struct {
	got []string
}

func (f *fakeSearcher) Search(_ context.Context, input string) ([]geocode.Suggestion, error) {
	f.got = append(f.got, input)
	if input == "fail" {
		return nil, errors.New("provider down")
	}
	return []geocode.Suggestion{{
		PlaceID:     "p1",
		Description: input + ", Punjab",
		Location:    &models.Coordinates{Latitude: 30.9, Longitude: 75.85},
	}}, nil
}

type fakeWeather struct {
	err error
}

func (f fakeWeather) Lookup(_ context.Context, _ models.Coordinates, date string) (*weather.Conditions, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &weather.Conditions{Date: date, Temperature: 31.5, Humidity: 40, WindSpeed: 9.2, WeatherCode: 1}, nil
}

type fakeSession struct {
	phone string
}

func (f fakeSession) Operator() (models.Operator, error) {
	if f.phone == "" {
		return models.Operator{}, models.ErrNotAuthenticated
	}
	return models.Operator{ID: "1", Phone: f.phone}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newRouter(t *testing.T, w WeatherLookup, session SessionSource) (*gin.Engine, *fakeSearcher) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := &fakeSearcher{}
	h := NewHandler(geocode.NewAutocompleter(s, 0, nil), w, session, nil, testSecret, nil)
	return NewRouter(h), s
}

func do(t *testing.T, r http.Handler, method, target, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func TestHealth(t *testing.T) {
	r, _ := newRouter(t, fakeWeather{}, fakeSession{phone: testPhone})
	w, _ := do(t, r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestBearerAuth_RejectsMissingAndBadTokens(t *testing.T) {
	r, _ := newRouter(t, fakeWeather{}, fakeSession{phone: testPhone})

	w, env := do(t, r, http.MethodGet, "/v1/places?input=ludhiana", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, CodeUnauthorized, env.Error.Code)

	w, env = do(t, r, http.MethodGet, "/v1/places?input=ludhiana", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, CodeInvalidToken, env.Error.Code)

	other := testutil.GenerateJWTHS256(t, "other-secret", testPhone, auth.KindOperator)
	w, _ = do(t, r, http.MethodGet, "/v1/places?input=ludhiana", other)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireSession(t *testing.T) {
	tok := testutil.GenerateJWTHS256(t, testSecret, testPhone, auth.KindOperator)

	r, _ := newRouter(t, fakeWeather{}, fakeSession{})
	w, env := do(t, r, http.MethodGet, "/v1/places?input=x", tok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, CodeUnauthorized, env.Error.Code)

	r, _ = newRouter(t, fakeWeather{}, fakeSession{phone: "+91 1111111111"})
	w, _ = do(t, r, http.MethodGet, "/v1/places?input=x", tok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSearchPlaces(t *testing.T) {
	tok := testutil.GenerateJWTHS256(t, testSecret, testPhone, auth.KindOperator)
	r, s := newRouter(t, fakeWeather{}, fakeSession{phone: testPhone})

	w, env := do(t, r, http.MethodGet, "/v1/places?input=Ludhiana", tok)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, env.Success)
	var res geocode.Result
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.False(t, res.Superseded)
	require.Len(t, res.Suggestions, 1)
	assert.Equal(t, "Ludhiana, Punjab", res.Suggestions[0].Description)
	assert.Equal(t, []string{"Ludhiana"}, s.got)

	// Provider failures degrade to an empty list.
	w, env = do(t, r, http.MethodGet, "/v1/places?input=fail", tok)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Empty(t, res.Suggestions)
	assert.NotNil(t, res.Suggestions)

	w, _ = do(t, r, http.MethodDelete, "/v1/places", tok)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestGetWeather(t *testing.T) {
	tok := testutil.GenerateJWTHS256(t, testSecret, testPhone, auth.KindOperator)

	t.Run("ok", func(t *testing.T) {
		r, _ := newRouter(t, fakeWeather{}, fakeSession{phone: testPhone})
		w, env := do(t, r, http.MethodGet, "/v1/weather?lat=30.9&lng=75.85&date=2026-03-18", tok)
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Weather *weather.Conditions `json:"weather"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &body))
		require.NotNil(t, body.Weather)
		assert.Equal(t, "2026-03-18", body.Weather.Date)
		assert.InDelta(t, 31.5, body.Weather.Temperature, 1e-9)
	})

	t.Run("zero coordinates are valid", func(t *testing.T) {
		r, _ := newRouter(t, fakeWeather{}, fakeSession{phone: testPhone})
		w, _ := do(t, r, http.MethodGet, "/v1/weather?lat=0&lng=0&date=2026-03-18", tok)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("degrades on provider failure", func(t *testing.T) {
		r, _ := newRouter(t, fakeWeather{err: weather.ErrNoData}, fakeSession{phone: testPhone})
		w, env := do(t, r, http.MethodGet, "/v1/weather?lat=30.9&lng=75.85&date=2026-03-18", tok)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"weather":null,"error":"weather unavailable"}`, string(env.Data))
	})

	t.Run("rejects bad query", func(t *testing.T) {
		r, _ := newRouter(t, fakeWeather{}, fakeSession{phone: testPhone})
		for _, target := range []string{
			"/v1/weather?lng=75.85&date=2026-03-18",
			"/v1/weather?lat=91&lng=75.85&date=2026-03-18",
			"/v1/weather?lat=30.9&lng=75.85&date=18-03-2026",
		} {
			w, env := do(t, r, http.MethodGet, target, tok)
			assert.Equal(t, http.StatusBadRequest, w.Code, target)
			assert.Equal(t, CodeValidation, env.Error.Code, target)
		}
	})
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery(nil), RequestLogger(nil))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w, env := do(t, r, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, CodeInternal, env.Error.Code)
}
