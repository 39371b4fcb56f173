// Package ledger is the boundary to a Solana node. Client is the contract
// the rest of the module depends on; RPCClient implements it over JSON-RPC.
package ledger

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// Client must tolerate concurrent calls from independent goroutines.
type Client interface {
	// GetBalance returns the balance of addr in lamports.
	GetBalance(ctx context.Context, addr solana.PublicKey) (uint64, error)
	// LatestBlockhash returns a recent blockhash to anchor a transaction.
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	// SendAndConfirm submits a signed transaction and waits for it to be
	// confirmed, returning its signature.
	SendAndConfirm(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}
