// Package client talks to a running shiftsyncd over its Unix socket.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/shiftsync/internal/api"
)

// Client is a connection to one profile's daemon.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the daemon listening on socketPath. The connection is
// established lazily on the first call.
func Dial(socketPath string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient("unix://"+socketPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", socketPath, err)
	}
	return &Client{conn: conn}, nil
}

// New wraps an existing connection.
func New(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func invoke[Resp any](ctx context.Context, c *Client, method string, req any) (Resp, error) {
	var resp Resp
	in, err := api.Encode(req)
	if err != nil {
		return resp, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+api.ServiceName+"/"+method, in, out); err != nil {
		return resp, api.FromStatus(err)
	}
	if err := api.Decode(out, &resp); err != nil {
		return resp, err
	}
	return resp, nil
}

func (c *Client) Feed(ctx context.Context, feed, tab string) (api.FeedView, error) {
	return invoke[api.FeedView](ctx, c, "GetFeed", api.FeedRequest{Feed: feed, Tab: tab})
}

func (c *Client) MarkViewed(ctx context.Context) (api.MarkViewedResponse, error) {
	return invoke[api.MarkViewedResponse](ctx, c, "MarkViewed", api.Empty{})
}

func (c *Client) SetJobFilter(ctx context.Context, categories []string) (api.FeedView, error) {
	return invoke[api.FeedView](ctx, c, "SetJobFilter", api.JobFilterRequest{Categories: categories})
}

func (c *Client) Availability(ctx context.Context) (api.AvailabilityView, error) {
	return invoke[api.AvailabilityView](ctx, c, "GetAvailability", api.Empty{})
}

func (c *Client) Toggle(ctx context.Context, date string) (api.AvailabilityView, error) {
	return invoke[api.AvailabilityView](ctx, c, "ToggleAvailability", api.DateRequest{Date: date})
}

func (c *Client) SaveAvailability(ctx context.Context) (api.AvailabilityView, error) {
	return invoke[api.AvailabilityView](ctx, c, "SaveAvailability", api.Empty{})
}

func (c *Client) DiscardAvailability(ctx context.Context) (api.AvailabilityView, error) {
	return invoke[api.AvailabilityView](ctx, c, "DiscardAvailability", api.Empty{})
}

func (c *Client) ResetAvailability(ctx context.Context) (api.AvailabilityView, error) {
	return invoke[api.AvailabilityView](ctx, c, "ResetAvailability", api.Empty{})
}

func (c *Client) ApplyRule(ctx context.Context, req api.RuleRequest) (api.RuleResponse, error) {
	return invoke[api.RuleResponse](ctx, c, "ApplyRule", req)
}

func (c *Client) Act(ctx context.Context, req api.ActRequest) (api.ActResponse, error) {
	return invoke[api.ActResponse](ctx, c, "Act", req)
}

func (c *Client) Profile(ctx context.Context, id string) (api.ProfileResponse, error) {
	return invoke[api.ProfileResponse](ctx, c, "GetProfile", api.ProfileRequest{ID: id})
}

func (c *Client) Calls(ctx context.Context, limit int) (api.CallsResponse, error) {
	return invoke[api.CallsResponse](ctx, c, "ListCalls", api.CallsRequest{Limit: limit})
}

func (c *Client) Status(ctx context.Context) (api.StatusResponse, error) {
	return invoke[api.StatusResponse](ctx, c, "Status", api.Empty{})
}

var watchDesc = &grpc.StreamDesc{StreamName: "WatchFeed", ServerStreams: true}

// Watch streams the feed to fn until ctx ends, the daemon goes away, or fn
// returns an error. A cancelled ctx returns nil.
func (c *Client) Watch(ctx context.Context, feed, tab string, fn func(api.FeedView) error) error {
	stream, err := c.conn.NewStream(ctx, watchDesc, "/"+api.ServiceName+"/WatchFeed")
	if err != nil {
		return api.FromStatus(err)
	}
	in, err := api.Encode(api.FeedRequest{Feed: feed, Tab: tab})
	if err != nil {
		return err
	}
	if err := stream.SendMsg(in); err != nil {
		return api.FromStatus(err)
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		out := new(structpb.Struct)
		if err := stream.RecvMsg(out); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return api.FromStatus(err)
		}
		var view api.FeedView
		if err := api.Decode(out, &view); err != nil {
			return err
		}
		if err := fn(view); err != nil {
			return err
		}
	}
}
