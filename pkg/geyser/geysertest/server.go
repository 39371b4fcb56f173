// Package geysertest runs an in-process Geyser Subscribe endpoint over
// bufconn for tests.
package geysertest

import (
	"context"
	"net"
	"testing"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const Endpoint = "passthrough:///bufnet"

type Stream struct {
	ss pb.Geyser_SubscribeServer
}

func (s *Stream) Context() context.Context { return s.ss.Context() }

func (s *Stream) Recv() (*pb.SubscribeRequest, error) {
	return s.ss.Recv()
}

func (s *Stream) Send(upd *pb.SubscribeUpdate) error {
	return s.ss.Send(upd)
}

type geyserServer struct {
	pb.UnimplementedGeyserServer
	token   string
	handler func(*Stream) error
}

func (g *geyserServer) Subscribe(ss pb.Geyser_SubscribeServer) error {
	md, _ := metadata.FromIncomingContext(ss.Context())
	if got := md.Get("x-token"); len(got) == 0 || got[0] != g.token {
		return status.Error(codes.Unauthenticated, "invalid x-token")
	}
	return g.handler(&Stream{ss: ss})
}

type Server struct {
	lis *bufconn.Listener
	srv *grpc.Server
}

// NewServer serves handler for every Subscribe call carrying token. Calls
// with another token fail with codes.Unauthenticated before handler runs.
func NewServer(t testing.TB, token string, handler func(*Stream) error) *Server {
	t.Helper()
	s := &Server{lis: bufconn.Listen(1 << 20), srv: grpc.NewServer()}
	pb.RegisterGeyserServer(s.srv, &geyserServer{token: token, handler: handler})
	go func() { _ = s.srv.Serve(s.lis) }()
	t.Cleanup(s.srv.Stop)
	return s
}

// DialOption routes Endpoint to this server.
func (s *Server) DialOption() grpc.DialOption {
	return grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return s.lis.DialContext(ctx)
	})
}

// BlockMeta builds a block-meta update as the node sends it.
func BlockMeta(slot uint64, hash string) *pb.SubscribeUpdate {
	return &pb.SubscribeUpdate{
		Filters: []string{"client"},
		UpdateOneof: &pb.SubscribeUpdate_BlockMeta{
			BlockMeta: &pb.SubscribeUpdateBlockMeta{Slot: slot, Blockhash: hash},
		},
	}
}

// Slot builds a slot update, which block-meta subscribers must ignore.
func Slot(slot uint64) *pb.SubscribeUpdate {
	return &pb.SubscribeUpdate{
		UpdateOneof: &pb.SubscribeUpdate_Slot{Slot: &pb.SubscribeUpdateSlot{Slot: slot}},
	}
}

// Ping builds a server keepalive.
func Ping() *pb.SubscribeUpdate {
	return &pb.SubscribeUpdate{
		UpdateOneof: &pb.SubscribeUpdate_Ping{Ping: &pb.SubscribeUpdatePing{}},
	}
}
