// Package balance looks up wallet balances concurrently.
package balance

import (
	"context"
	"slot-relayer/pkg/fanout"
	"slot-relayer/pkg/report"
	"slot-relayer/pkg/shared"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"
)

type Getter interface {
	GetBalance(ctx context.Context, addr solana.PublicKey) (uint64, error)
}

// Result is the outcome for one wallet. Address is zero when the wallet
// text did not parse.
type Result struct {
	Wallet   string
	Address  solana.PublicKey
	Lamports uint64
	Err      error
}

type Checker struct {
	client  Getter
	printer *report.Printer
}

func NewChecker(client Getter, printer *report.Printer) *Checker {
	if printer == nil {
		printer = report.Stdio()
	}
	return &Checker{client: client, printer: printer}
}

type item struct {
	index  int
	wallet string
}

// CheckAll fetches every wallet's balance and prints one line per wallet as
// soon as it is known. Results are returned in input order. The error is
// non-nil only when the batch itself could not be joined.
func (c *Checker) CheckAll(ctx context.Context, wallets []string, opts fanout.Options) ([]Result, error) {
	items := make([]item, len(wallets))
	for i, w := range wallets {
		items[i] = item{index: i, wallet: w}
	}
	results := make([]Result, len(wallets))

	err := fanout.Run(ctx, items, opts, c.check, func(it item, res Result, err error) {
		res.Wallet = it.wallet
		res.Err = err
		if err != nil {
			c.printer.BalanceFailed(it.wallet, err)
		} else {
			c.printer.Balance(res.Address, res.Lamports)
		}
		results[it.index] = res
	})
	if err != nil {
		return nil, err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	log.Info().Int("wallets", len(wallets)).Int("failed", failed).Msg("Balance check finished")
	return results, nil
}

func (c *Checker) check(ctx context.Context, it item) (Result, error) {
	addr, err := shared.ParseAddress(it.wallet)
	if err != nil {
		return Result{}, err
	}
	lamports, err := c.client.GetBalance(ctx, addr)
	if err != nil {
		return Result{Address: addr}, err
	}
	return Result{Address: addr, Lamports: lamports}, nil
}
