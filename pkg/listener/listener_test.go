package listener

import (
	"context"
	"slot-relayer/pkg/geyser/geysertest"
	"slot-relayer/pkg/shared"
	"testing"
	"time"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

func newListener(srv *geysertest.Server, token string) *Listener {
	return NewListener(Options{
		Endpoint:    geysertest.Endpoint,
		Token:       token,
		Commitment:  shared.Finalized,
		DialOptions: []grpc.DialOption{srv.DialOption()},
	})
}

func collect(t *testing.T, s *Stream) ([]shared.ChainEvent, error, bool) {
	t.Helper()
	var got []shared.ChainEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-s.Events():
			got = append(got, ev)
		case err, ok := <-s.Err():
			return got, err, ok
		case <-timeout:
			t.Fatal("stream did not end")
		}
	}
}

func TestListener_StreamsBlockMetaInOrder(t *testing.T) {
	pong := make(chan *pb.SubscribeRequest, 1)
	srv := geysertest.NewServer(t, "token", func(s *geysertest.Stream) error {
		req, err := s.Recv()
		if err != nil {
			return err
		}
		if len(req.GetBlocksMeta()) != 1 || req.Commitment == nil || req.GetCommitment() != pb.CommitmentLevel_FINALIZED {
			t.Errorf("unexpected subscribe request: %+v", req)
		}
		updates := []*pb.SubscribeUpdate{
			geysertest.BlockMeta(1, "h1"),
			geysertest.Slot(1),
			geysertest.Ping(),
			geysertest.BlockMeta(2, "h2"),
			{UpdateOneof: &pb.SubscribeUpdate_Transaction{Transaction: &pb.SubscribeUpdateTransaction{Slot: 2}}},
			geysertest.BlockMeta(3, "h3"),
		}
		for _, u := range updates {
			if err := s.Send(u); err != nil {
				return err
			}
		}
		ping, err := s.Recv()
		if err != nil {
			return err
		}
		pong <- ping
		return nil
	})

	l := newListener(srv, "token")
	assert.Equal(t, Disconnected, l.State())
	s, err := l.Start(context.Background())
	require.NoError(t, err)
	defer s.Close()

	got, err, open := collect(t, s)
	assert.False(t, open, "clean close must not report an error")
	assert.NoError(t, err)
	assert.Equal(t, []shared.ChainEvent{
		{BlockHash: "h1", Slot: 1},
		{BlockHash: "h2", Slot: 2},
		{BlockHash: "h3", Slot: 3},
	}, got)
	assert.Equal(t, Closed, l.State())

	ping := <-pong
	require.NotNil(t, ping.GetPing())
	assert.Equal(t, int32(1), ping.GetPing().GetId())
	assert.Contains(t, ping.GetBlocksMeta(), "client", "ping keeps the block-meta filter")
	assert.Len(t, ping.GetBlocksMeta(), 1)
}

func TestListener_ZeroEvents(t *testing.T) {
	srv := geysertest.NewServer(t, "token", func(s *geysertest.Stream) error {
		_, err := s.Recv()
		return err
	})
	s, err := newListener(srv, "token").Start(context.Background())
	require.NoError(t, err)
	defer s.Close()

	got, err, _ := collect(t, s)
	assert.Empty(t, got)
	assert.NoError(t, err)
}

func TestListener_AuthFailureIsTransportError(t *testing.T) {
	srv := geysertest.NewServer(t, "token", func(s *geysertest.Stream) error { return nil })
	l := newListener(srv, "bad")
	s, err := l.Start(context.Background())
	require.NoError(t, err)
	defer s.Close()

	got, err, open := collect(t, s)
	assert.Empty(t, got)
	assert.True(t, open)
	assert.ErrorIs(t, err, shared.ErrTransport)
	assert.Equal(t, Errored, l.State())
}

func TestListener_NotRestartable(t *testing.T) {
	srv := geysertest.NewServer(t, "token", func(s *geysertest.Stream) error {
		<-s.Context().Done()
		return nil
	})
	l := newListener(srv, "token")
	s, err := l.Start(context.Background())
	require.NoError(t, err)
	defer s.Close()

	_, err = l.Start(context.Background())
	assert.Error(t, err)
}

func TestListener_InvalidEndpoint(t *testing.T) {
	l := NewListener(Options{Endpoint: ""})
	_, err := l.Start(context.Background())
	assert.ErrorIs(t, err, shared.ErrTransport)
	assert.Equal(t, Errored, l.State())
}

func TestStream_CloseIsIdempotent(t *testing.T) {
	srv := geysertest.NewServer(t, "token", func(s *geysertest.Stream) error {
		if _, err := s.Recv(); err != nil {
			return err
		}
		// Blocks until the client goes away; the event is never consumed.
		_ = s.Send(geysertest.BlockMeta(1, "h1"))
		<-s.Context().Done()
		return nil
	})
	l := newListener(srv, "token")
	s, err := l.Start(context.Background())
	require.NoError(t, err)

	s.Close()
	s.Close()
	assert.Equal(t, Closed, l.State())
	_, open := <-s.Err()
	assert.False(t, open)
}
