package grpcserver

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"sprayDispatch/internal/auth"
	"sprayDispatch/internal/logging"
	"sprayDispatch/internal/route"
	"sprayDispatch/internal/store"
	"sprayDispatch/models"
)

const defaultWatchBuffer = 64

// Server implements DispatchService on top of the booking store.
type Server struct {
	Store    *store.Store
	OTP      *auth.OTPIssuer
	Secret   string
	TokenTTL time.Duration
	Log      *slog.Logger
	// Now stamps tokens and snapshots. Defaults to time.Now.
	Now func() time.Time
	// WatchBuffer bounds the changes queued for one watcher before it is dropped.
	WatchBuffer int
}

var _ DispatchServiceServer = (*Server)(nil)

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Server) logger(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, logging.OrDiscard(s.Log))
}

// session checks that the caller's token belongs to the signed-in operator.
func (s *Server) session(ctx context.Context) (models.Operator, error) {
	p, err := auth.RequireOperator(ctx)
	if err != nil {
		return models.Operator{}, err
	}
	op, err := s.Store.Operator()
	if err != nil {
		return models.Operator{}, status.Error(codes.Unauthenticated, "no active session")
	}
	if op.Phone != p.Name {
		return models.Operator{}, status.Error(codes.Unauthenticated, "token does not belong to the active session")
	}
	return op, nil
}

// RequestOTP issues a login code for a 10-digit phone number. A second
// request replaces the previous code.
func (s *Server) RequestOTP(ctx context.Context, req *RequestOTPRequest) (*OTPChallenge, error) {
	code, exp, err := s.OTP.Issue(req.Phone)
	if err != nil {
		return nil, err
	}
	national, _ := auth.NormalizePhone(req.Phone)
	phone := auth.SessionPhone(national)
	s.logger(ctx).Info("otp_issued", slog.String("phone", phone), slog.Time("expires_at", exp))
	return &OTPChallenge{Phone: phone, Code: code, ExpiresAt: exp}, nil
}

// VerifyOTP checks the code, opens the operator session and returns a token.
func (s *Server) VerifyOTP(ctx context.Context, req *VerifyOTPRequest) (*Session, error) {
	national, err := s.OTP.Verify(req.Phone, req.Code)
	if err != nil {
		s.logger(ctx).Warn("otp_rejected", slog.String("error", err.Error()))
		return nil, err
	}
	phone := auth.SessionPhone(national)
	token, exp, err := auth.IssueToken(s.Secret, auth.Principal{Name: phone, Kind: auth.KindOperator}, s.TokenTTL, s.now())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "issue token: %v", err)
	}
	op, err := s.Store.Login(phone)
	if err != nil {
		return nil, err
	}
	s.logger(ctx).Info("operator_logged_in", slog.String("phone", phone))
	return &Session{Token: token, ExpiresAt: exp, Operator: op}, nil
}

func (s *Server) Logout(ctx context.Context, _ *Empty) (*Empty, error) {
	op, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	s.Store.Logout()
	s.logger(ctx).Info("operator_logged_out", slog.String("phone", op.Phone))
	return &Empty{}, nil
}

func (s *Server) GetOperator(ctx context.Context, _ *Empty) (*OperatorResponse, error) {
	op, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	return &OperatorResponse{Operator: op}, nil
}

// UpdateOperator patches the profile. Id and phone cannot change.
func (s *Server) UpdateOperator(ctx context.Context, req *UpdateOperatorRequest) (*OperatorResponse, error) {
	if _, err := s.session(ctx); err != nil {
		return nil, err
	}
	op, err := s.Store.UpdateOperator(*req)
	if err != nil {
		return nil, err
	}
	return &OperatorResponse{Operator: op}, nil
}

// ListBookings returns the bookings in any of the given statuses, or all
// of them when none are given.
func (s *Server) ListBookings(ctx context.Context, req *ListBookingsRequest) (*BookingList, error) {
	if _, err := s.session(ctx); err != nil {
		return nil, err
	}
	if len(req.Statuses) == 0 {
		return &BookingList{Bookings: s.Store.Bookings()}, nil
	}
	statuses := make([]models.BookingStatus, 0, len(req.Statuses))
	for _, v := range req.Statuses {
		st, err := models.ParseBookingStatus(v)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, st)
	}
	return &BookingList{Bookings: s.Store.ByStatus(statuses...)}, nil
}

func (s *Server) GetBooking(ctx context.Context, req *GetBookingRequest) (*BookingResponse, error) {
	if _, err := s.session(ctx); err != nil {
		return nil, err
	}
	b, err := s.Store.Booking(req.ID)
	if err != nil {
		return nil, err
	}
	return &BookingResponse{Booking: &b}, nil
}

func (s *Server) TodayBookings(ctx context.Context, _ *Empty) (*BookingList, error) {
	if _, err := s.session(ctx); err != nil {
		return nil, err
	}
	return &BookingList{Bookings: s.Store.Today()}, nil
}

func (s *Server) UpdateBookingStatus(ctx context.Context, req *UpdateBookingStatusRequest) (*BookingResponse, error) {
	if _, err := s.session(ctx); err != nil {
		return nil, err
	}
	st, err := models.ParseBookingStatus(req.Status)
	if err != nil {
		return nil, err
	}
	b, err := s.Store.UpdateStatus(req.ID, st)
	if err != nil {
		s.logger(ctx).Warn("booking_update_rejected",
			slog.String("booking_id", req.ID), slog.String("status", string(st)), slog.String("error", err.Error()))
		return nil, err
	}
	return bookingResponse(b), nil
}

func (s *Server) ApplyBookingEvent(ctx context.Context, req *ApplyBookingEventRequest) (*BookingResponse, error) {
	if _, err := s.session(ctx); err != nil {
		return nil, err
	}
	ev, err := models.ParseEvent(req.Event)
	if err != nil {
		return nil, err
	}
	b, err := s.Store.Apply(req.ID, ev)
	if err != nil {
		s.logger(ctx).Warn("booking_event_rejected",
			slog.String("booking_id", req.ID), slog.String("event", string(ev)), slog.String("error", err.Error()))
		return nil, err
	}
	return bookingResponse(b), nil
}

func bookingResponse(b models.Booking) *BookingResponse {
	if b.ID == "" {
		return &BookingResponse{}
	}
	return &BookingResponse{Booking: &b}
}

func (s *Server) GetEarnings(ctx context.Context, req *GetEarningsRequest) (*EarningsResponse, error) {
	if _, err := s.session(ctx); err != nil {
		return nil, err
	}
	p, err := store.ParsePeriod(req.Period)
	if err != nil {
		return nil, err
	}
	return &EarningsResponse{Period: p, Summary: s.Store.Earnings(p)}, nil
}

func (s *Server) GetHistory(ctx context.Context, req *GetHistoryRequest) (*BookingList, error) {
	if _, err := s.session(ctx); err != nil {
		return nil, err
	}
	w, err := store.ParseHistoryWindow(req.Window)
	if err != nil {
		return nil, err
	}
	return &BookingList{Bookings: s.Store.History(w)}, nil
}

func (s *Server) ListUpcoming(ctx context.Context, _ *Empty) (*UpcomingResponse, error) {
	if _, err := s.session(ctx); err != nil {
		return nil, err
	}
	return &UpcomingResponse{Days: s.Store.Upcoming()}, nil
}

// PlanRoute orders one day's bookings by scheduled time and measures each
// leg from the operator's home location. Date defaults to today.
func (s *Server) PlanRoute(ctx context.Context, req *PlanRouteRequest) (*RouteResponse, error) {
	op, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	f, err := route.ParseFilter(req.Filter)
	if err != nil {
		return nil, err
	}
	date := req.Date
	if date == "" {
		date = store.DateString(s.Store.Now())
	} else if _, err := time.Parse(models.DateLayout, date); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "date %q must be YYYY-MM-DD", date)
	}
	stops, err := route.Plan(op.HomeLocation, route.ForDay(s.Store.Bookings(), date, f))
	if err != nil {
		return nil, err
	}
	return &RouteResponse{
		Date:    date,
		Filter:  f,
		Home:    op.HomeLocation,
		Stops:   stops,
		TotalKm: route.TotalKm(stops),
	}, nil
}

// WatchBookings sends a snapshot of every booking, then one event per
// booking change until the client goes away or the operator logs out.
// A watcher that falls WatchBuffer changes behind is dropped.
func (s *Server) WatchBookings(_ *Empty, stream WatchStream) error {
	ctx := stream.Context()
	if _, err := s.session(ctx); err != nil {
		return err
	}
	size := s.WatchBuffer
	if size <= 0 {
		size = defaultWatchBuffer
	}
	changes := make(chan store.Change, size)
	lagged := make(chan struct{})
	var dropped bool
	// Subscribe before the snapshot so no change falls in between.
	cancel := s.Store.Subscribe(func(c store.Change) {
		if dropped {
			return
		}
		select {
		case changes <- c:
		default:
			dropped = true
			close(lagged)
		}
	})
	defer cancel()

	if err := stream.Send(&WatchEvent{Type: EventSnapshot, Bookings: s.Store.Bookings(), At: s.now()}); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-lagged:
			s.logger(ctx).Warn("watch_dropped_slow_client")
			return status.Error(codes.ResourceExhausted, "watcher fell behind")
		case c := <-changes:
			switch c.Kind {
			case store.ChangeBooking:
				ev := &WatchEvent{Type: EventBookingUpdated, Booking: c.Booking, PreviousStatus: string(c.PreviousStatus), At: c.At}
				if err := stream.Send(ev); err != nil {
					return err
				}
			case store.ChangeOperator:
				if c.Operator == nil {
					_ = stream.Send(&WatchEvent{Type: EventLoggedOut, At: c.At})
					return nil
				}
			}
		}
	}
}
