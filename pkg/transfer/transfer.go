// Package transfer executes a batch of independent SOL transfers
// concurrently.
package transfer

import (
	"context"
	"slot-relayer/pkg/fanout"
	"slot-relayer/pkg/report"
	"slot-relayer/pkg/shared"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Submitter interface {
	Submit(ctx context.Context, tr shared.Transfer) (solana.Signature, error)
}

// Entry is one requested transfer as written in configuration.
type Entry struct {
	SecretKey string
	To        string
	Amount    uint64
}

type Outcome struct {
	Signature solana.Signature
	Err       error
}

type Batch struct {
	submitter Submitter
	printer   *report.Printer
}

func NewBatch(submitter Submitter, printer *report.Printer) *Batch {
	if printer == nil {
		printer = report.Stdio()
	}
	return &Batch{submitter: submitter, printer: printer}
}

type unit struct {
	index int
	entry Entry
}

// Execute submits every entry concurrently. An entry whose key or recipient
// does not parse fails on its own; the rest still run. Outcomes are returned
// in entry order. The error is non-nil only when the batch could not be
// joined.
func (b *Batch) Execute(ctx context.Context, entries []Entry, opts fanout.Options) ([]Outcome, error) {
	batchID := uuid.New()
	logger := log.With().Str("batch_id", batchID.String()).Logger()
	logger.Info().Int("transfers", len(entries)).Msg("Starting transfer batch")

	units := make([]unit, len(entries))
	for i, e := range entries {
		units[i] = unit{index: i, entry: e}
	}
	outcomes := make([]Outcome, len(entries))

	err := fanout.Run(ctx, units, opts, b.submit, func(u unit, o Outcome, err error) {
		o.Err = err
		outcomes[u.index] = o
		if err != nil {
			logger.Debug().Int("entry", u.index).Err(err).Msg("Transfer failed")
		}
	})
	if err != nil {
		return nil, err
	}

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	logger.Info().Int("transfers", len(entries)).Int("failed", failed).Msg("Transfer batch finished")
	return outcomes, nil
}

func (b *Batch) submit(ctx context.Context, u unit) (Outcome, error) {
	tr, err := parseEntry(u.entry)
	if err != nil {
		b.printer.TransferRejected(u.index, u.entry.To, u.entry.Amount, err)
		return Outcome{}, err
	}
	sig, err := b.submitter.Submit(ctx, tr)
	if err != nil {
		b.printer.TransferFailed(tr, err)
		return Outcome{}, err
	}
	b.printer.Transferred(tr, sig)
	return Outcome{Signature: sig}, nil
}

func parseEntry(e Entry) (shared.Transfer, error) {
	signer, err := shared.ParseSigner(e.SecretKey)
	if err != nil {
		return shared.Transfer{}, err
	}
	to, err := shared.ParseAddress(e.To)
	if err != nil {
		return shared.Transfer{}, err
	}
	return shared.NewTransfer(signer, to, e.Amount), nil
}
