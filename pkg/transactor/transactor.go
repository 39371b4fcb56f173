package transactor

import (
	"context"
	"errors"
	"fmt"
	"slot-relayer/pkg/ledger"
	"slot-relayer/pkg/shared"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/rs/zerolog/log"
)

// Transactor submits single-instruction SOL transfers. It keeps no state
// between calls, so one Transactor may be shared by concurrent callers.
type Transactor struct {
	client ledger.Client
}

func NewTransactor(client ledger.Client) *Transactor {
	return &Transactor{client: client}
}

// Submit fetches a fresh blockhash, builds and signs the transfer, then sends
// it and waits for confirmation. No retries are attempted.
func (t *Transactor) Submit(ctx context.Context, tr shared.Transfer) (solana.Signature, error) {
	start := time.Now()

	blockhash, err := t.client.LatestBlockhash(ctx)
	if err != nil {
		// The cause is flattened so the error matches ErrFreshness only.
		return solana.Signature{}, fmt.Errorf("%w: %v", shared.ErrFreshness, err)
	}

	tx, err := BuildTransfer(tr, blockhash)
	if err != nil {
		return solana.Signature{}, err
	}
	log.Debug().Msgf("Transfer tx built, blockhash: %s, sender: %s, recipient: %s, amount: %d",
		blockhash, tr.Sender().PublicKey(), tr.Recipient(), tr.Amount())

	sig, err := t.client.SendAndConfirm(ctx, tx)
	if err != nil {
		if !errors.Is(err, shared.ErrTransport) {
			err = fmt.Errorf("%w: %w", shared.ErrTransport, err)
		}
		return solana.Signature{}, err
	}
	log.Debug().Str("signature", sig.String()).Dur("elapsed", time.Since(start)).Msg("Transfer tx confirmed")
	return sig, nil
}

// BuildTransfer returns a transaction holding one system transfer
// instruction, paid for and signed by the sender.
func BuildTransfer(tr shared.Transfer, blockhash solana.Hash) (*solana.Transaction, error) {
	sender := tr.Sender()
	if !sender.Valid() {
		return nil, fmt.Errorf("%w: sender key material is malformed", shared.ErrSigning)
	}
	from := sender.PublicKey()

	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(tr.Amount(), from, tr.Recipient()).Build(),
		},
		blockhash,
		solana.TransactionPayer(from),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build transfer tx: %w", err)
	}

	key := sender.Key()
	if _, err := tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
		if pk.Equals(from) {
			return &key
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrSigning, err)
	}
	return tx, nil
}
