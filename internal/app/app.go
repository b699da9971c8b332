// Package app wires configuration, storage, the booking store and the
// gRPC and HTTP servers into one runnable process.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"sprayDispatch/internal/auth"
	"sprayDispatch/internal/config"
	"sprayDispatch/internal/db"
	"sprayDispatch/internal/geocode"
	grpcserver "sprayDispatch/internal/grpc"
	"sprayDispatch/internal/httpapi"
	"sprayDispatch/internal/logging"
	"sprayDispatch/internal/notify"
	"sprayDispatch/internal/store"
	"sprayDispatch/internal/weather"
	"sprayDispatch/models"
	"sprayDispatch/repository"
)

type App struct {
	cfg *config.Config
	log *slog.Logger
	db  *sql.DB

	Store     *store.Store
	bookings  *repository.BookingRepository
	operators *repository.OperatorRepository
	persister *Persister
	hub       *notify.Hub
	grpc      *grpc.Server
	http      *http.Server

	unsubscribe []func()
}

// New opens the database, seeds it when asked, loads the store from it and
// builds both servers. Nothing listens until Run.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	log = logging.OrDiscard(log)
	loc, err := cfg.Store.Location()
	if err != nil {
		return nil, fmt.Errorf("store timezone: %w", err)
	}

	d, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	a := &App{
		cfg:       cfg,
		log:       log,
		db:        d,
		bookings:  repository.NewBookingRepository(d),
		operators: repository.NewOperatorRepository(d),
	}
	if err := a.initStore(ctx, loc); err != nil {
		_ = d.Close()
		return nil, err
	}

	a.persister = NewPersister(a.bookings, a.operators, log)
	a.hub = notify.NewHub(a.authenticateSocket, log)
	a.unsubscribe = append(a.unsubscribe,
		a.Store.Subscribe(a.persister.Enqueue),
		a.Store.Subscribe(a.hub.PublishChange),
	)

	a.grpc = grpcserver.NewGRPCServer(&grpcserver.Server{
		Store:    a.Store,
		OTP:      auth.NewOTPIssuer(cfg.Auth.OTPTTL, cfg.Auth.OTPMaxAttempts),
		Secret:   cfg.Auth.JWTSecret,
		TokenTTL: cfg.Auth.TokenTTL,
		Log:      log,
	}, log)

	a.http = &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           httpapi.NewRouter(a.newHandler()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

func (a *App) initStore(ctx context.Context, loc *time.Location) error {
	tmpl, err := a.operators.TemplateOrSeed(ctx, store.MockOperator())
	if err != nil {
		return fmt.Errorf("load operator template: %w", err)
	}
	if a.cfg.Store.SeedMock {
		n, err := a.bookings.SeedIfEmpty(ctx, store.MockBookings(time.Now().In(loc)))
		if err != nil {
			return fmt.Errorf("seed bookings: %w", err)
		}
		if n > 0 {
			a.log.Info("bookings_seeded", slog.Int("count", n))
		}
	}

	opts := []store.Option{store.WithLocation(loc), store.WithOperatorTemplate(tmpl)}
	if !a.cfg.Store.StrictTransitions {
		opts = append(opts, store.WithPermissiveTransitions())
	}
	st, err := store.New(ctx, a.bookings.List, opts...)
	if err != nil {
		return fmt.Errorf("load store: %w", err)
	}
	a.Store = st
	version, err := db.Version(a.db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	counts, err := a.bookings.CountByStatus(ctx)
	if err != nil {
		return fmt.Errorf("count bookings: %w", err)
	}
	byStatus := make([]any, 0, len(models.AllBookingStatuses))
	for _, s := range models.AllBookingStatuses {
		byStatus = append(byStatus, slog.Int(string(s), counts[s]))
	}
	a.log.Info("store_loaded",
		slog.Int("schema_version", version),
		slog.Int("bookings", len(st.Bookings())),
		slog.Group("by_status", byStatus...),
		slog.Bool("permissive", st.Permissive()),
		slog.String("timezone", loc.String()))
	return nil
}

func (a *App) newHandler() *httpapi.Handler {
	gc := geocode.NewClient(
		geocode.WithBaseURL(a.cfg.Geocode.BaseURL),
		geocode.WithAPIKey(a.cfg.Geocode.APIKey),
		geocode.WithHTTPClient(&http.Client{Timeout: a.cfg.Geocode.Timeout}),
	)
	if !gc.Enabled() {
		a.log.Warn("places_disabled", slog.String("reason", "PLACES_API_KEY is empty"))
	}
	wc := weather.NewClient(
		weather.WithBaseURL(a.cfg.Weather.BaseURL),
		weather.WithHTTPClient(&http.Client{Timeout: a.cfg.Weather.Timeout}),
	)
	if logging.ParseLevel(a.cfg.Log.Level) > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	return httpapi.NewHandler(
		geocode.NewAutocompleter(gc, a.cfg.Geocode.Debounce, a.log),
		wc,
		a.Store,
		http.HandlerFunc(a.hub.ServeWS),
		a.cfg.Auth.JWTSecret,
		a.log,
	)
}

// authenticateSocket accepts tokens of the signed-in operator only.
func (a *App) authenticateSocket(token string) (string, error) {
	p, err := auth.ParseToken(token, a.cfg.Auth.JWTSecret)
	if err != nil {
		return "", err
	}
	if p.Kind != auth.KindOperator {
		return "", fmt.Errorf("kind %q cannot watch bookings", p.Kind)
	}
	op, err := a.Store.Operator()
	if err != nil {
		return "", err
	}
	if op.Phone != p.Name {
		return "", errors.New("token does not belong to the active session")
	}
	return p.Name, nil
}

// Run serves gRPC and HTTP until ctx is done, then shuts both down.
func (a *App) Run(ctx context.Context) error {
	shutdownGRPC, err := grpcserver.StartGRPC(a.cfg.GRPC.Address, a.grpc)
	if err != nil {
		return fmt.Errorf("start grpc: %w", err)
	}
	a.log.Info("grpc_listening", slog.String("address", a.cfg.GRPC.Address))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.hub.Run(gctx)
		return nil
	})
	g.Go(func() error { return a.persister.Run(gctx) })
	g.Go(func() error {
		a.log.Info("http_listening", slog.String("address", a.http.Addr))
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return errors.Join(a.http.Shutdown(sctx), shutdownGRPC(sctx))
	})
	return g.Wait()
}

// Close detaches the store subscribers and closes the database.
func (a *App) Close() error {
	for _, unsub := range a.unsubscribe {
		unsub()
	}
	return a.db.Close()
}
