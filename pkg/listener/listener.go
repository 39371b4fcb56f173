package listener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slot-relayer/pkg/geyser"
	"slot-relayer/pkg/shared"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/event"
	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
)

const defaultFilterName = "client"

type State int32

const (
	Disconnected State = iota
	Connecting
	Subscribed
	Streaming
	Closed
	Errored
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Subscribed:
		return "subscribed"
	case Streaming:
		return "streaming"
	case Closed:
		return "closed"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

type Options struct {
	Endpoint   string
	Token      string
	Commitment shared.Commitment
	// FilterName labels the block-meta filter on the server. Defaults to "client".
	FilterName  string
	DialOptions []grpc.DialOption
}

// Listener subscribes to block-meta updates of a Geyser endpoint. A Listener
// yields at most one Stream; once that stream ends a new Listener is needed.
type Listener struct {
	opts    Options
	state   atomic.Int32
	started atomic.Bool
}

func NewListener(opts Options) *Listener {
	if opts.FilterName == "" {
		opts.FilterName = defaultFilterName
	}
	return &Listener{opts: opts}
}

func (l *Listener) State() State {
	return State(l.state.Load())
}

func (l *Listener) setState(s State) {
	prev := State(l.state.Swap(int32(s)))
	if prev != s {
		log.Debug().Msgf("Listener state %s -> %s", prev, s)
	}
}

// Start connects, subscribes to block-meta updates only and starts
// streaming. Any failure here is terminal for the listener.
func (l *Listener) Start(ctx context.Context) (*Stream, error) {
	if !l.started.CompareAndSwap(false, true) {
		return nil, errors.New("listener already started, create a new one")
	}

	l.setState(Connecting)
	client, err := geyser.Dial(l.opts.Endpoint, l.opts.Token, l.opts.DialOptions...)
	if err != nil {
		l.setState(Errored)
		return nil, fmt.Errorf("%w: %w", shared.ErrTransport, err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	gs, err := client.Subscribe(streamCtx)
	if err != nil {
		cancel()
		_ = client.Close()
		l.setState(Errored)
		return nil, fmt.Errorf("%w: %w", shared.ErrTransport, err)
	}
	// io.EOF means the server already ended the call; Recv reports why.
	if err := gs.Send(l.request(nil)); err != nil && !errors.Is(err, io.EOF) {
		cancel()
		_ = client.Close()
		l.setState(Errored)
		return nil, fmt.Errorf("%w: failed to send subscribe request: %w", shared.ErrTransport, err)
	}
	l.setState(Subscribed)
	log.Info().Str("endpoint", l.opts.Endpoint).Str("commitment", l.opts.Commitment.String()).
		Msg("Subscribed to block meta updates")

	s := &Stream{
		events: make(chan shared.ChainEvent),
		cancel: cancel,
		client: client,
	}
	l.setState(Streaming)
	s.sub = event.NewSubscription(func(quit <-chan struct{}) error {
		return l.pump(streamCtx, gs, s.events, quit)
	})
	return s, nil
}

// request builds the subscription. Pings resend the same filter so the
// server never sees a narrower subscription.
func (l *Listener) request(ping *int32) *pb.SubscribeRequest {
	return geyser.BlocksMetaRequest(l.opts.FilterName, toGeyserCommitment(l.opts.Commitment), ping)
}

func toGeyserCommitment(c shared.Commitment) pb.CommitmentLevel {
	switch c {
	case shared.Processed:
		return pb.CommitmentLevel_PROCESSED
	case shared.Confirmed:
		return pb.CommitmentLevel_CONFIRMED
	default:
		return pb.CommitmentLevel_FINALIZED
	}
}

// pump forwards block-meta updates to events, one at a time and in arrival
// order. Returning nil means the stream closed, an error means it failed.
func (l *Listener) pump(
	ctx context.Context,
	gs *geyser.SubscribeStream,
	events chan<- shared.ChainEvent,
	quit <-chan struct{},
) error {
	var pings int32
	for {
		upd, err := gs.Recv()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				log.Info().Err(err).Msg("Block stream closed")
				l.setState(Closed)
				return nil
			}
			l.setState(Errored)
			return fmt.Errorf("%w: block stream: %w", shared.ErrTransport, err)
		}

		switch u := upd.GetUpdateOneof().(type) {
		case *pb.SubscribeUpdate_BlockMeta:
			if u.BlockMeta == nil {
				continue
			}
			ev := shared.ChainEvent{BlockHash: u.BlockMeta.GetBlockhash(), Slot: u.BlockMeta.GetSlot()}
			select {
			case events <- ev:
			case <-quit:
				l.setState(Closed)
				return nil
			}
		case *pb.SubscribeUpdate_Ping:
			pings++
			if err := gs.Send(l.request(&pings)); err != nil {
				log.Warn().Err(err).Msg("failed to answer geyser ping")
			}
		default:
			log.Debug().Msgf("Ignoring %T update", u)
		}
	}
}

// Stream is the handle of one open subscription.
type Stream struct {
	events chan shared.ChainEvent
	sub    event.Subscription
	cancel context.CancelFunc
	client *geyser.Client
	once   sync.Once
}

// Events delivers block-meta events in the order the node emitted them.
func (s *Stream) Events() <-chan shared.ChainEvent {
	return s.events
}

// Err yields the transport error that ended the stream, if any, and is
// closed once the stream has ended.
func (s *Stream) Err() <-chan error {
	return s.sub.Err()
}

// Close releases the subscription. Safe to call more than once.
func (s *Stream) Close() {
	s.once.Do(func() {
		s.cancel()
		s.sub.Unsubscribe()
		if err := s.client.Close(); err != nil {
			log.Debug().Err(err).Msg("failed to close geyser connection")
		}
	})
}
