// Package relayer reacts to block-meta events by submitting one pre-bound
// transfer per event, strictly one at a time and in arrival order.
package relayer

import (
	"context"
	"errors"
	"fmt"
	"slot-relayer/pkg/metrics"
	"slot-relayer/pkg/report"
	"slot-relayer/pkg/shared"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const closeTimeout = 10 * time.Second

// EventStream is an open block-meta subscription.
type EventStream interface {
	Events() <-chan shared.ChainEvent
	// Err is closed when the stream ends and carries the failure, if any.
	Err() <-chan error
	Close()
}

type Submitter interface {
	Submit(ctx context.Context, tr shared.Transfer) (solana.Signature, error)
}

type Options struct {
	Stream    EventStream
	Submitter Submitter
	// Transfer is submitted unchanged for every event.
	Transfer shared.Transfer
	Printer  *report.Printer
	Metrics  metrics.Sink
}

type Relayer struct {
	stream    EventStream
	submitter Submitter
	transfer  shared.Transfer
	printer   *report.Printer
	metrics   metrics.Sink
	runID     uuid.UUID

	closeStream sync.Once
	cancel      context.CancelFunc
	done        chan struct{}
	err         error
}

func NewRelayer(opts *Options) *Relayer {
	r := &Relayer{
		stream:    opts.Stream,
		submitter: opts.Submitter,
		transfer:  opts.Transfer,
		printer:   opts.Printer,
		metrics:   opts.Metrics,
		runID:     uuid.New(),
	}
	if r.printer == nil {
		r.printer = report.Stdio()
	}
	if r.metrics == nil {
		r.metrics = metrics.Noop{}
	}
	return r
}

// Run handles events until the stream ends or ctx is done. A stream that
// ends cleanly, including one that never produced an event, returns nil.
// A stream failure is printed and returned. The stream is closed on return.
func (r *Relayer) Run(ctx context.Context) error {
	defer r.close()
	logger := log.With().Str("run_id", r.runID.String()).Logger()
	logger.Info().Msgf("Relayer started, transferring %s per block", r.transfer)

	handled := 0
	for {
		select {
		case <-ctx.Done():
			logger.Info().Int("handled", handled).Msg("Relayer shutting down")
			return nil
		case ev := <-r.stream.Events():
			r.handle(ctx, ev)
			handled++
		case err, ok := <-r.stream.Err():
			if !ok || err == nil {
				logger.Info().Int("handled", handled).Msg("Block stream ended, relayer exiting")
				return nil
			}
			r.printer.StreamError(err)
			return fmt.Errorf("block stream failed after %d events: %w", handled, err)
		}
	}
}

// handle returns only once the submission for ev has an outcome, so the next
// event is not read before then.
func (r *Relayer) handle(ctx context.Context, ev shared.ChainEvent) {
	r.printer.Block(ev)
	log.Debug().Str("run_id", r.runID.String()).Uint64("slot", ev.Slot).Msg("Submitting transfer for block")

	start := time.Now()
	sig, err := r.submitter.Submit(ctx, r.transfer)
	elapsed := time.Since(start).Seconds()
	tags := []string{"run_id:" + r.runID.String(), "to:" + r.transfer.Recipient().String()}
	if err != nil {
		r.printer.TransferFailed(r.transfer, err)
		r.metrics.Gauge(ctx, "relayer.transfer.failure", elapsed, tags)
		return
	}
	r.printer.Transferred(r.transfer, sig)
	r.metrics.Gauge(ctx, "relayer.transfer.success", elapsed, tags)
}

func (r *Relayer) close() {
	r.closeStream.Do(r.stream.Close)
}

// Start runs the relayer in the background. The returned channel is closed
// once Run has returned; Err then reports its result.
func (r *Relayer) Start(ctx context.Context) <-chan struct{} {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	go func() {
		defer close(r.done)
		r.err = r.Run(ctx)
	}()
	return r.done
}

// Err is only meaningful after the channel returned by Start is closed.
func (r *Relayer) Err() error {
	return r.err
}

// TryCloseAll stops a started relayer and waits for it to release the stream.
func (r *Relayer) TryCloseAll() error {
	log.Debug().Msg("closing relayer and block stream")
	if r.cancel == nil {
		r.close()
		return nil
	}
	r.cancel()

	select {
	case <-r.done:
		log.Info().Msg("relayer closed")
		return nil
	case <-time.After(closeTimeout):
		msg := fmt.Sprintf("failed to close relayer in %s", closeTimeout)
		log.Error().Msg(msg)
		return errors.New(msg)
	}
}
