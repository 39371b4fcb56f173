// Package report writes the user-facing result lines. Results go to Out,
// failures to Err; each line is written whole even under concurrent use.
package report

import (
	"fmt"
	"io"
	"os"
	"slot-relayer/pkg/shared"
	"sync"

	"github.com/gagliardetto/solana-go"
)

type Printer struct {
	mu  sync.Mutex
	out io.Writer
	err io.Writer
}

func NewPrinter(out, err io.Writer) *Printer {
	return &Printer{out: out, err: err}
}

// Stdio prints results to stdout and failures to stderr.
func Stdio() *Printer {
	return NewPrinter(os.Stdout, os.Stderr)
}

func (p *Printer) line(w io.Writer, format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(w, format+"\n", args...)
}

func (p *Printer) Balance(addr solana.PublicKey, lamports uint64) {
	p.line(p.out, "Wallet %s: %s SOL", addr, shared.FormatSOL(lamports))
}

// BalanceFailed takes the wallet as text since it may not have parsed.
func (p *Printer) BalanceFailed(wallet string, err error) {
	p.line(p.err, "Failed to fetch balance for %s: %v", wallet, err)
}

func (p *Printer) Transferred(tr shared.Transfer, sig solana.Signature) {
	p.line(p.out, "Successfully transfer %s. TX hash: %s", tr, sig)
}

func (p *Printer) TransferFailed(tr shared.Transfer, err error) {
	p.line(p.err, "Failed to transfer %s: %v", tr, err)
}

// TransferRejected reports a batch entry whose key or recipient did not parse.
func (p *Printer) TransferRejected(index int, to string, lamports uint64, err error) {
	p.line(p.err, "Failed to transfer %s SOL to %s (entry %d): %v", shared.FormatSOL(lamports), to, index, err)
}

func (p *Printer) Block(ev shared.ChainEvent) {
	p.line(p.out, "New block! Hash: %s, Slot: %d", ev.BlockHash, ev.Slot)
}

func (p *Printer) StreamError(err error) {
	p.line(p.err, "Block stream error: %v", err)
}
