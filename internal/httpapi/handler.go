// Package httpapi is the HTTP surface next to the gRPC service: health,
// place autocomplete, weather, and the booking change websocket.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"sprayDispatch/internal/geocode"
	"sprayDispatch/internal/logging"
	"sprayDispatch/internal/weather"
	"sprayDispatch/models"
)

// WeatherLookup is satisfied by *weather.Client.
type WeatherLookup interface {
	Lookup(ctx context.Context, loc models.Coordinates, date string) (*weather.Conditions, error)
}

// SessionSource reports the signed-in operator; *store.Store satisfies it.
type SessionSource interface {
	Operator() (models.Operator, error)
}

// Handler serves the /v1 routes.
type Handler struct {
	places  *geocode.Autocompleter
	weather WeatherLookup
	session SessionSource
	ws      http.Handler
	secret  string
	log     *slog.Logger
}

func NewHandler(places *geocode.Autocompleter, w WeatherLookup, session SessionSource, ws http.Handler, secret string, log *slog.Logger) *Handler {
	return &Handler{
		places:  places,
		weather: w,
		session: session,
		ws:      ws,
		secret:  secret,
		log:     logging.OrDiscard(log),
	}
}

// NewRouter builds the engine with middleware and all routes.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(Recovery(h.log), RequestLogger(h.log))
	r.GET("/healthz", h.Health)
	h.RegisterRoutes(r.Group("/v1"))
	return r
}

// RegisterRoutes mounts the /v1 routes on rg.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	// The websocket authenticates with its first message.
	if h.ws != nil {
		rg.GET("/bookings/ws", gin.WrapH(h.ws))
	}

	protected := rg.Group("", BearerAuth(h.secret), h.requireSession())
	{
		protected.GET("/places", h.SearchPlaces)
		protected.DELETE("/places", h.ResetPlaces)
		protected.GET("/weather", h.GetWeather)
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// requireSession rejects tokens of an operator that is no longer signed in.
func (h *Handler) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.session == nil {
			c.Next()
			return
		}
		p, ok := principal(c)
		op, err := h.session.Operator()
		if !ok || err != nil || op.Phone != p.Name {
			fail(c, http.StatusUnauthorized, CodeUnauthorized, "no active session")
			return
		}
		c.Next()
	}
}

type placesQuery struct {
	Input string `form:"input" binding:"max=200"`
}

// SearchPlaces returns debounced place suggestions for the caller.
// A superseded lookup answers with superseded=true and no suggestions.
func (h *Handler) SearchPlaces(c *gin.Context) {
	var q placesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}
	p, _ := principal(c)
	res := h.places.Lookup(c.Request.Context(), p.Name, q.Input)
	success(c, http.StatusOK, res)
}

// ResetPlaces drops the caller's pending lookup.
func (h *Handler) ResetPlaces(c *gin.Context) {
	p, _ := principal(c)
	h.places.Reset(p.Name)
	c.Status(http.StatusNoContent)
}

type weatherQuery struct {
	Lat  *float64 `form:"lat" binding:"required,latitude"`
	Lng  *float64 `form:"lng" binding:"required,longitude"`
	Date string   `form:"date" binding:"required,datetime=2006-01-02"`
}

// GetWeather returns the forecast for a place and day. Provider failures
// degrade to {"weather": null, "error": ...} with status 200.
func (h *Handler) GetWeather(c *gin.Context) {
	var q weatherQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}
	loc := models.Coordinates{Latitude: *q.Lat, Longitude: *q.Lng}
	cond, err := h.weather.Lookup(c.Request.Context(), loc, q.Date)
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			fail(c, http.StatusBadRequest, CodeValidation, err.Error())
			return
		}
		logging.FromContext(c.Request.Context(), h.log).Warn("weather_lookup_failed",
			slog.String("date", q.Date), slog.String("error", err.Error()))
		success(c, http.StatusOK, gin.H{"weather": nil, "error": "weather unavailable"})
		return
	}
	success(c, http.StatusOK, gin.H{"weather": cond})
}
