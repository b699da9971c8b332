package grpcserver

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"sprayDispatch/internal/logging"
)

const requestIDMetadataKey = "x-request-id"

func requestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(requestIDMetadataKey); len(vals) > 0 && vals[0] != "" {
			return vals[0]
		}
	}
	return uuid.NewString()
}

// NewUnaryLoggingInterceptor tags each call with a request id and logs its
// method, code and duration.
func NewUnaryLoggingInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	log = logging.OrDiscard(log)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		ctx = logging.WithRequestID(ctx, requestID(ctx))
		resp, err := handler(ctx, req)
		logCall(ctx, log, info.FullMethod, start, err)
		return resp, err
	}
}

type loggedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *loggedStream) Context() context.Context { return s.ctx }

// NewStreamLoggingInterceptor is the streaming counterpart of NewUnaryLoggingInterceptor.
func NewStreamLoggingInterceptor(log *slog.Logger) grpc.StreamServerInterceptor {
	log = logging.OrDiscard(log)
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		ctx := logging.WithRequestID(ss.Context(), requestID(ss.Context()))
		err := handler(srv, &loggedStream{ServerStream: ss, ctx: ctx})
		logCall(ctx, log, info.FullMethod, start, err)
		return err
	}
}

func logCall(ctx context.Context, log *slog.Logger, method string, start time.Time, err error) {
	code := status.Code(err)
	l := logging.FromContext(ctx, log)
	attrs := []any{
		slog.String("method", method),
		slog.String("code", code.String()),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		l.Warn("grpc_call", append(attrs, slog.String("error", err.Error()))...)
		return
	}
	l.Info("grpc_call", attrs...)
}
