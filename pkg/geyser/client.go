// Package geyser wraps the Yellowstone Geyser gRPC client. Only the
// Subscribe stream is used.
package geyser

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strings"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const (
	tokenHeader = "x-token"
	// Geyser block-meta updates are small but block updates can be large.
	maxRecvMsgSize = 64 << 20
)

type Client struct {
	conn   *grpc.ClientConn
	geyser pb.GeyserClient
	token  string
}

// Dial prepares a client for endpoint. An https:// endpoint, or one without a
// scheme, uses TLS with the system roots; http:// is plaintext. No network
// I/O happens until Subscribe.
func Dial(endpoint, token string, opts ...grpc.DialOption) (*Client, error) {
	target, secure, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	creds := insecure.NewCredentials()
	if secure {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxRecvMsgSize)),
	}, opts...)

	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create geyser client for %s: %w", endpoint, err)
	}
	return &Client{conn: conn, geyser: pb.NewGeyserClient(conn), token: token}, nil
}

func parseEndpoint(endpoint string) (target string, secure bool, err error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", false, fmt.Errorf("geyser endpoint is empty")
	}
	if !strings.Contains(endpoint, "://") {
		return endpoint, true, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid geyser endpoint %q: %w", endpoint, err)
	}
	switch u.Scheme {
	case "https":
		secure = true
	case "http":
		secure = false
	default:
		// Scheme understood by a grpc resolver, e.g. passthrough:///bufnet.
		return endpoint, false, nil
	}
	host := u.Host
	if u.Port() == "" {
		port := "80"
		if secure {
			port = "443"
		}
		host = net.JoinHostPort(u.Hostname(), port)
	}
	return host, secure, nil
}

// Subscribe opens the bidirectional Subscribe stream. The stream lives until
// ctx is cancelled or the server ends it.
func (c *Client) Subscribe(ctx context.Context) (*SubscribeStream, error) {
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, tokenHeader, c.token)
	}
	stream, err := c.geyser.Subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open geyser subscribe stream: %w", err)
	}
	return &SubscribeStream{stream: stream}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

type SubscribeStream struct {
	stream pb.Geyser_SubscribeClient
}

func (s *SubscribeStream) Send(req *pb.SubscribeRequest) error {
	return s.stream.Send(req)
}

func (s *SubscribeStream) Recv() (*pb.SubscribeUpdate, error) {
	return s.stream.Recv()
}

func (s *SubscribeStream) CloseSend() error {
	return s.stream.CloseSend()
}
