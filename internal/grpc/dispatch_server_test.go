package grpcserver

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"sprayDispatch/internal/auth"
	"sprayDispatch/internal/store"
	"sprayDispatch/internal/testutil"
	"sprayDispatch/models"
)

const (
	testSecret = "grpc-test-secret"
	testCode   = "123456"
)

type harness struct {
	store  *store.Store
	client *Client
	conn   *grpc.ClientConn
}

// newHarness serves DispatchService over an in-memory listener.
func newHarness(t *testing.T, opts ...store.Option) *harness {
	t.Helper()
	st := testutil.NewMockStore(t, opts...)
	otp := auth.NewOTPIssuer(5*time.Minute, 3,
		auth.WithOTPClock(testutil.Clock),
		auth.WithOTPGenerator(func() (string, error) { return testCode, nil }))
	svc := &Server{Store: st, OTP: otp, Secret: testSecret, TokenTTL: time.Hour, WatchBuffer: 8}

	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(svc, nil)
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial bufconn: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
	})
	return &harness{store: st, client: NewClient(conn), conn: conn}
}

// login runs the OTP flow and returns a context carrying the session token.
func (h *harness) login(t *testing.T, phone string) context.Context {
	t.Helper()
	ctx := context.Background()
	var ch OTPChallenge
	if err := h.client.Call(ctx, MethodRequestOTP, &RequestOTPRequest{Phone: phone}, &ch); err != nil {
		t.Fatalf("RequestOTP: %v", err)
	}
	var sess Session
	if err := h.client.Call(ctx, MethodVerifyOTP, &VerifyOTPRequest{Phone: phone, Code: ch.Code}, &sess); err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	return testutil.OutgoingBearer(ctx, sess.Token)
}

func wantCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	if status.Code(err) != code {
		t.Fatalf("code=%v want=%v (err=%v)", status.Code(err), code, err)
	}
}

func TestOTPLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var ch OTPChallenge
	if err := h.client.Call(ctx, MethodRequestOTP, &RequestOTPRequest{Phone: "98765 43210"}, &ch); err != nil {
		t.Fatalf("RequestOTP: %v", err)
	}
	if ch.Phone != "+91 9876543210" || ch.Code != testCode {
		t.Fatalf("unexpected challenge: %+v", ch)
	}
	if !ch.ExpiresAt.Equal(testutil.FixedNow.Add(5 * time.Minute)) {
		t.Fatalf("expiresAt=%v", ch.ExpiresAt)
	}

	err := h.client.Call(ctx, MethodVerifyOTP, &VerifyOTPRequest{Phone: "9876543210", Code: "000000"}, nil)
	wantCode(t, err, codes.InvalidArgument)

	var sess Session
	if err := h.client.Call(ctx, MethodVerifyOTP, &VerifyOTPRequest{Phone: "9876543210", Code: testCode}, &sess); err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if sess.Token == "" || sess.Operator.Phone != "+91 9876543210" || sess.Operator.Name != "Rajesh Kumar" {
		t.Fatalf("unexpected session: %+v", sess)
	}

	var got OperatorResponse
	if err := h.client.Call(testutil.OutgoingBearer(ctx, sess.Token), MethodGetOperator, &Empty{}, &got); err != nil {
		t.Fatalf("GetOperator: %v", err)
	}
	if got.Operator.Phone != "+91 9876543210" {
		t.Fatalf("operator phone=%q", got.Operator.Phone)
	}
}

func TestRequestOTP_RejectsShortPhone(t *testing.T) {
	h := newHarness(t)
	err := h.client.Call(context.Background(), MethodRequestOTP, &RequestOTPRequest{Phone: "12345"}, nil)
	wantCode(t, err, codes.InvalidArgument)
}

func TestAuth_RequiresActiveSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	err := h.client.Call(ctx, MethodGetOperator, &Empty{}, nil)
	wantCode(t, err, codes.Unauthenticated)

	// Valid token, but nobody is logged in.
	tok := testutil.GenerateJWTHS256(t, testSecret, "+91 9876543210", auth.KindOperator)
	err = h.client.Call(testutil.OutgoingBearer(ctx, tok), MethodListBookings, &ListBookingsRequest{}, nil)
	wantCode(t, err, codes.Unauthenticated)

	authed := h.login(t, "9876543210")
	other := testutil.GenerateJWTHS256(t, testSecret, "+91 1111111111", auth.KindOperator)
	err = h.client.Call(testutil.OutgoingBearer(ctx, other), MethodListBookings, &ListBookingsRequest{}, nil)
	wantCode(t, err, codes.Unauthenticated)

	if err := h.client.Call(authed, MethodLogout, &Empty{}, nil); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	err = h.client.Call(authed, MethodGetOperator, &Empty{}, nil)
	wantCode(t, err, codes.Unauthenticated)
}

func TestHealth_IsPublic(t *testing.T) {
	h := newHarness(t)
	resp, err := healthpb.NewHealthClient(h.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status=%v", resp.GetStatus())
	}
}

func TestBookings_QueriesAndTransitions(t *testing.T) {
	h := newHarness(t)
	ctx := h.login(t, "9876543210")

	var pending BookingList
	if err := h.client.Call(ctx, MethodListBookings, &ListBookingsRequest{Statuses: []string{"pending"}}, &pending); err != nil {
		t.Fatalf("ListBookings: %v", err)
	}
	if len(pending.Bookings) != 2 || pending.Bookings[0].ID != "1" || pending.Bookings[1].ID != "3" {
		t.Fatalf("pending=%+v", pending.Bookings)
	}

	err := h.client.Call(ctx, MethodListBookings, &ListBookingsRequest{Statuses: []string{"lost"}}, nil)
	wantCode(t, err, codes.InvalidArgument)

	var today BookingList
	if err := h.client.Call(ctx, MethodTodayBookings, &Empty{}, &today); err != nil {
		t.Fatalf("TodayBookings: %v", err)
	}
	if len(today.Bookings) != 3 {
		t.Fatalf("today=%d want 3", len(today.Bookings))
	}

	var resp BookingResponse
	if err := h.client.Call(ctx, MethodApplyBookingEvent, &ApplyBookingEventRequest{ID: "1", Event: "accept"}, &resp); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if resp.Booking == nil || resp.Booking.Status != models.BookingStatusActive {
		t.Fatalf("after accept: %+v", resp.Booking)
	}

	err = h.client.Call(ctx, MethodApplyBookingEvent, &ApplyBookingEventRequest{ID: "1", Event: "complete"}, nil)
	wantCode(t, err, codes.FailedPrecondition)
	err = h.client.Call(ctx, MethodApplyBookingEvent, &ApplyBookingEventRequest{ID: "1", Event: "finish"}, nil)
	wantCode(t, err, codes.InvalidArgument)
	err = h.client.Call(ctx, MethodUpdateBookingStatus, &UpdateBookingStatusRequest{ID: "3", Status: "completed"}, nil)
	wantCode(t, err, codes.FailedPrecondition)
	err = h.client.Call(ctx, MethodUpdateBookingStatus, &UpdateBookingStatusRequest{ID: "missing", Status: "active"}, nil)
	wantCode(t, err, codes.NotFound)
	err = h.client.Call(ctx, MethodGetBooking, &GetBookingRequest{ID: "missing"}, nil)
	wantCode(t, err, codes.NotFound)

	for _, st := range []string{"in_progress", "completed"} {
		if err := h.client.Call(ctx, MethodUpdateBookingStatus, &UpdateBookingStatusRequest{ID: "1", Status: st}, &resp); err != nil {
			t.Fatalf("UpdateBookingStatus(%s): %v", st, err)
		}
	}
	if resp.Booking.CompletedAt == nil || !resp.Booking.CompletedAt.Equal(testutil.FixedNow) {
		t.Fatalf("completedAt=%v", resp.Booking.CompletedAt)
	}

	var earn EarningsResponse
	if err := h.client.Call(ctx, MethodGetEarnings, &GetEarningsRequest{Period: "today"}, &earn); err != nil {
		t.Fatalf("GetEarnings: %v", err)
	}
	if earn.Summary.Total != 4500 || earn.Summary.Count != 1 {
		t.Fatalf("today earnings=%+v", earn.Summary)
	}
	err = h.client.Call(ctx, MethodGetEarnings, &GetEarningsRequest{Period: "year"}, nil)
	wantCode(t, err, codes.InvalidArgument)

	var hist BookingList
	if err := h.client.Call(ctx, MethodGetHistory, &GetHistoryRequest{}, &hist); err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(hist.Bookings) != 4 {
		t.Fatalf("history=%d want 4", len(hist.Bookings))
	}

	var up UpcomingResponse
	if err := h.client.Call(ctx, MethodListUpcoming, &Empty{}, &up); err != nil {
		t.Fatalf("ListUpcoming: %v", err)
	}
	if len(up.Days) != 1 || up.Days[0].Date != "2026-03-18" {
		t.Fatalf("upcoming=%+v", up.Days)
	}
}

func TestPermissiveMode_UnknownIDIsNoop(t *testing.T) {
	h := newHarness(t, store.WithPermissiveTransitions())
	ctx := h.login(t, "9876543210")

	var resp BookingResponse
	if err := h.client.Call(ctx, MethodUpdateBookingStatus, &UpdateBookingStatusRequest{ID: "missing", Status: "active"}, &resp); err != nil {
		t.Fatalf("UpdateBookingStatus: %v", err)
	}
	if resp.Booking != nil {
		t.Fatalf("expected null booking, got %+v", resp.Booking)
	}
	if err := h.client.Call(ctx, MethodUpdateBookingStatus, &UpdateBookingStatusRequest{ID: "3", Status: "completed"}, &resp); err != nil {
		t.Fatalf("forced completion: %v", err)
	}
	if resp.Booking == nil || resp.Booking.Status != models.BookingStatusCompleted {
		t.Fatalf("forced completion=%+v", resp.Booking)
	}
}

func TestPlanRoute(t *testing.T) {
	h := newHarness(t)
	ctx := h.login(t, "9876543210")

	var accepted RouteResponse
	if err := h.client.Call(ctx, MethodPlanRoute, &PlanRouteRequest{}, &accepted); err != nil {
		t.Fatalf("PlanRoute: %v", err)
	}
	if accepted.Date != "2026-03-18" || len(accepted.Stops) != 1 || accepted.Stops[0].Booking.ID != "2" {
		t.Fatalf("accepted route=%+v", accepted)
	}
	if !accepted.Stops[0].FromHome || accepted.Stops[0].DistanceKm == nil {
		t.Fatalf("first stop should be measured from home: %+v", accepted.Stops[0])
	}

	var all RouteResponse
	if err := h.client.Call(ctx, MethodPlanRoute, &PlanRouteRequest{Date: "2026-03-18", Filter: "all"}, &all); err != nil {
		t.Fatalf("PlanRoute(all): %v", err)
	}
	var ids []string
	for _, s := range all.Stops {
		ids = append(ids, s.Booking.ID)
	}
	if len(ids) != 3 || ids[0] != "1" || ids[1] != "2" || ids[2] != "3" {
		t.Fatalf("route order=%v", ids)
	}
	if all.TotalKm <= accepted.TotalKm {
		t.Fatalf("totalKm=%v should exceed %v", all.TotalKm, accepted.TotalKm)
	}

	err := h.client.Call(ctx, MethodPlanRoute, &PlanRouteRequest{Date: "18/03/2026"}, nil)
	wantCode(t, err, codes.InvalidArgument)
}

func TestWatchBookings(t *testing.T) {
	h := newHarness(t)
	ctx := h.login(t, "9876543210")
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	w, err := h.client.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	ev, err := w.Recv()
	if err != nil {
		t.Fatalf("Recv snapshot: %v", err)
	}
	if ev.Type != EventSnapshot || len(ev.Bookings) != 6 {
		t.Fatalf("snapshot=%+v", ev)
	}

	if err := h.client.Call(ctx, MethodApplyBookingEvent, &ApplyBookingEventRequest{ID: "3", Event: "accept"}, nil); err != nil {
		t.Fatalf("accept: %v", err)
	}
	ev, err = w.Recv()
	if err != nil {
		t.Fatalf("Recv update: %v", err)
	}
	if ev.Type != EventBookingUpdated || ev.Booking == nil || ev.Booking.ID != "3" || ev.PreviousStatus != "pending" {
		t.Fatalf("update=%+v", ev)
	}

	if err := h.client.Call(ctx, MethodLogout, &Empty{}, nil); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	ev, err = w.Recv()
	if err != nil {
		t.Fatalf("Recv logout: %v", err)
	}
	if ev.Type != EventLoggedOut {
		t.Fatalf("expected logout event, got %+v", ev)
	}
	if _, err := w.Recv(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after logout, got %v", err)
	}
}

func TestWatchBookings_RequiresToken(t *testing.T) {
	h := newHarness(t)
	w, err := h.client.Watch(context.Background())
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	_, err = w.Recv()
	wantCode(t, err, codes.Unauthenticated)
}
