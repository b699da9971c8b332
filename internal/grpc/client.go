package grpcserver

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client is the Go client for DispatchService. It calls the service over
// conn, converting typed requests and responses to and from Struct messages.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Call invokes the unary method (a full method name such as
// MethodGetBooking) and decodes the response into out.
func (c *Client) Call(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	req, err := toStruct(in)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, req, resp, opts...); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return fromStruct(resp, out)
}

// WatchClient receives WatchBookings events.
type WatchClient struct {
	stream grpc.ClientStream
}

// Recv returns the next event, or io.EOF when the server ended the stream.
func (w *WatchClient) Recv() (*WatchEvent, error) {
	m := new(structpb.Struct)
	if err := w.stream.RecvMsg(m); err != nil {
		return nil, err
	}
	var ev WatchEvent
	if err := fromStruct(m, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Watch opens a WatchBookings stream.
func (c *Client) Watch(ctx context.Context, opts ...grpc.CallOption) (*WatchClient, error) {
	stream, err := c.conn.NewStream(ctx, &DispatchServiceDesc.Streams[0], MethodWatchBookings, opts...)
	if err != nil {
		return nil, err
	}
	req, err := toStruct(&Empty{})
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &WatchClient{stream: stream}, nil
}
