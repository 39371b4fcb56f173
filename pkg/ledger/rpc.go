package ledger

import (
	"context"
	"fmt"
	"slot-relayer/pkg/shared"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog/log"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultMaxPolls     = 120
)

type Options struct {
	RPCUrl     string
	Commitment shared.Commitment
	// Interval between signature status polls while awaiting confirmation.
	PollInterval time.Duration
	// MaxPolls bounds the confirmation wait. The transaction is not resent.
	MaxPolls int
}

type RPCClient struct {
	rpc          *rpc.Client
	commitment   rpc.CommitmentType
	pollInterval time.Duration
	maxPolls     int
}

var _ Client = (*RPCClient)(nil)

func NewRPCClient(opts Options) *RPCClient {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.MaxPolls <= 0 {
		opts.MaxPolls = defaultMaxPolls
	}
	return &RPCClient{
		rpc:          rpc.New(opts.RPCUrl),
		commitment:   toRPCCommitment(opts.Commitment),
		pollInterval: opts.PollInterval,
		maxPolls:     opts.MaxPolls,
	}
}

func toRPCCommitment(c shared.Commitment) rpc.CommitmentType {
	switch c {
	case shared.Processed:
		return rpc.CommitmentProcessed
	case shared.Finalized:
		return rpc.CommitmentFinalized
	default:
		return rpc.CommitmentConfirmed
	}
}

func (c *RPCClient) GetBalance(ctx context.Context, addr solana.PublicKey) (uint64, error) {
	res, err := c.rpc.GetBalance(ctx, addr, c.commitment)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get balance of %s: %w", shared.ErrTransport, addr, err)
	}
	return res.Value, nil
}

func (c *RPCClient) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	res, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("%w: failed to get latest blockhash: %w", shared.ErrTransport, err)
	}
	if res == nil || res.Value == nil {
		return solana.Hash{}, fmt.Errorf("%w: empty latest blockhash response", shared.ErrTransport)
	}
	return res.Value.Blockhash, nil
}

func (c *RPCClient) SendAndConfirm(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: failed to send transaction: %w", shared.ErrTransport, err)
	}
	log.Debug().Str("signature", sig.String()).Msg("transaction sent, awaiting confirmation")

	// Wait for the transaction to reach the configured commitment, with a timeout
	for idx := 0; idx < c.maxPolls; idx++ {
		res, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
		if err != nil {
			return sig, fmt.Errorf("%w: failed to get signature status of %s: %w", shared.ErrTransport, sig, err)
		}
		if res != nil && len(res.Value) > 0 && res.Value[0] != nil {
			status := res.Value[0]
			if status.Err != nil {
				return sig, fmt.Errorf("%w: transaction %s failed: %v", shared.ErrTransport, sig, status.Err)
			}
			if c.reached(status.ConfirmationStatus) {
				log.Debug().Str("signature", sig.String()).Uint64("slot", status.Slot).
					Msgf("transaction reached %s", status.ConfirmationStatus)
				return sig, nil
			}
		}
		select {
		case <-ctx.Done():
			return sig, fmt.Errorf("%w: %w", shared.ErrTransport, ctx.Err())
		case <-time.After(c.pollInterval):
		}
	}
	return sig, fmt.Errorf("%w: transaction %s not confirmed after %d polls", shared.ErrTransport, sig, c.maxPolls)
}

func (c *RPCClient) reached(status rpc.ConfirmationStatusType) bool {
	switch status {
	case rpc.ConfirmationStatusFinalized:
		return true
	case rpc.ConfirmationStatusConfirmed:
		return c.commitment != rpc.CommitmentFinalized
	case rpc.ConfirmationStatusProcessed:
		return c.commitment == rpc.CommitmentProcessed
	default:
		return false
	}
}
