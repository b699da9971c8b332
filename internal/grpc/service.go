// Package grpcserver serves dispatch.v1.DispatchService and provides its Go
// client (Client) for tools and other services that call it.
package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "dispatch.v1.DispatchService"

// Full method names.
const (
	MethodRequestOTP          = "/" + ServiceName + "/RequestOTP"
	MethodVerifyOTP           = "/" + ServiceName + "/VerifyOTP"
	MethodLogout              = "/" + ServiceName + "/Logout"
	MethodGetOperator         = "/" + ServiceName + "/GetOperator"
	MethodUpdateOperator      = "/" + ServiceName + "/UpdateOperator"
	MethodListBookings        = "/" + ServiceName + "/ListBookings"
	MethodGetBooking          = "/" + ServiceName + "/GetBooking"
	MethodTodayBookings       = "/" + ServiceName + "/TodayBookings"
	MethodUpdateBookingStatus = "/" + ServiceName + "/UpdateBookingStatus"
	MethodApplyBookingEvent   = "/" + ServiceName + "/ApplyBookingEvent"
	MethodGetEarnings         = "/" + ServiceName + "/GetEarnings"
	MethodGetHistory          = "/" + ServiceName + "/GetHistory"
	MethodListUpcoming        = "/" + ServiceName + "/ListUpcoming"
	MethodPlanRoute           = "/" + ServiceName + "/PlanRoute"
	MethodWatchBookings       = "/" + ServiceName + "/WatchBookings"
)

// DispatchServiceServer is the server API for DispatchService.
type DispatchServiceServer interface {
	RequestOTP(context.Context, *RequestOTPRequest) (*OTPChallenge, error)
	VerifyOTP(context.Context, *VerifyOTPRequest) (*Session, error)
	Logout(context.Context, *Empty) (*Empty, error)
	GetOperator(context.Context, *Empty) (*OperatorResponse, error)
	UpdateOperator(context.Context, *UpdateOperatorRequest) (*OperatorResponse, error)
	ListBookings(context.Context, *ListBookingsRequest) (*BookingList, error)
	GetBooking(context.Context, *GetBookingRequest) (*BookingResponse, error)
	TodayBookings(context.Context, *Empty) (*BookingList, error)
	UpdateBookingStatus(context.Context, *UpdateBookingStatusRequest) (*BookingResponse, error)
	ApplyBookingEvent(context.Context, *ApplyBookingEventRequest) (*BookingResponse, error)
	GetEarnings(context.Context, *GetEarningsRequest) (*EarningsResponse, error)
	GetHistory(context.Context, *GetHistoryRequest) (*BookingList, error)
	ListUpcoming(context.Context, *Empty) (*UpcomingResponse, error)
	PlanRoute(context.Context, *PlanRouteRequest) (*RouteResponse, error)
	WatchBookings(*Empty, WatchStream) error
}

// WatchStream is the server side of WatchBookings.
type WatchStream interface {
	Send(*WatchEvent) error
	Context() context.Context
}

type watchStream struct {
	grpc.ServerStream
}

func (s *watchStream) Send(ev *WatchEvent) error {
	m, err := toStruct(ev)
	if err != nil {
		return err
	}
	return s.ServerStream.SendMsg(m)
}

// RegisterDispatchServiceServer registers srv on s.
func RegisterDispatchServiceServer(s grpc.ServiceRegistrar, srv DispatchServiceServer) {
	s.RegisterService(&DispatchServiceDesc, srv)
}

// unary adapts a typed method to a Struct-in, Struct-out gRPC handler.
func unary[Req, Resp any](name string, call func(DispatchServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				r := new(Req)
				if err := fromStruct(req.(*structpb.Struct), r); err != nil {
					return nil, status.Errorf(codes.InvalidArgument, "bad request: %v", err)
				}
				out, err := call(srv.(DispatchServiceServer), ctx, r)
				if err != nil {
					return nil, toStatus(err)
				}
				return toStruct(out)
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func watchBookingsHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	var req Empty
	if err := fromStruct(in, &req); err != nil {
		return status.Errorf(codes.InvalidArgument, "bad request: %v", err)
	}
	return toStatus(srv.(DispatchServiceServer).WatchBookings(&req, &watchStream{stream}))
}

// DispatchServiceDesc describes DispatchService. Every message is a
// google.protobuf.Struct.
var DispatchServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DispatchServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("RequestOTP", DispatchServiceServer.RequestOTP),
		unary("VerifyOTP", DispatchServiceServer.VerifyOTP),
		unary("Logout", DispatchServiceServer.Logout),
		unary("GetOperator", DispatchServiceServer.GetOperator),
		unary("UpdateOperator", DispatchServiceServer.UpdateOperator),
		unary("ListBookings", DispatchServiceServer.ListBookings),
		unary("GetBooking", DispatchServiceServer.GetBooking),
		unary("TodayBookings", DispatchServiceServer.TodayBookings),
		unary("UpdateBookingStatus", DispatchServiceServer.UpdateBookingStatus),
		unary("ApplyBookingEvent", DispatchServiceServer.ApplyBookingEvent),
		unary("GetEarnings", DispatchServiceServer.GetEarnings),
		unary("GetHistory", DispatchServiceServer.GetHistory),
		unary("ListUpcoming", DispatchServiceServer.ListUpcoming),
		unary("PlanRoute", DispatchServiceServer.PlanRoute),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchBookings",
			Handler:       watchBookingsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "dispatch/v1/dispatch.proto",
}
