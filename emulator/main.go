// Command emulator keeps sending small random transfers and reports how long
// each took to confirm.
package main

import (
	"context"
	"crypto/rand"
	"math/big"
	mathrand "math/rand"
	"os"
	"os/signal"
	"slot-relayer/pkg/ledger"
	"slot-relayer/pkg/metrics"
	"slot-relayer/pkg/shared"
	"slot-relayer/pkg/transactor"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultRPCUrl = "http://localhost:8899"

	// Amounts are drawn from [minLamports, maxLamports).
	minLamports = shared.LamportsPerSOL / 1000
	maxLamports = shared.LamportsPerSOL / 100
)

func main() {
	secretKey := os.Getenv("PRIVATE_KEY")
	if secretKey == "" {
		log.Fatal().Msg("PRIVATE_KEY env var is required")
	}
	signer, err := shared.ParseSigner(secretKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse private key")
	}

	accountAddr := os.Getenv("ACCOUNT_ADDR")
	if accountAddr == "" {
		log.Fatal().Msg("ACCOUNT_ADDR env var is required")
	}
	recipient, err := shared.ParseAddress(accountAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("ACCOUNT_ADDR is not a valid address")
	}

	rpcURL := os.Getenv("RPC_URL")
	if rpcURL == "" {
		rpcURL = defaultRPCUrl
	}

	var sink metrics.Sink = metrics.Noop{}
	if apiKey := os.Getenv("DD_API_KEY"); apiKey != "" {
		sink = metrics.NewDatadog(apiKey, os.Getenv("DD_APP_KEY"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tx := transactor.NewTransactor(ledger.NewRPCClient(ledger.Options{RPCUrl: rpcURL}))
	tags := []string{"environment:test", "account_addr:" + accountAddr}

	for ctx.Err() == nil {
		amount, err := rand.Int(rand.Reader, big.NewInt(int64(maxLamports-minLamports)))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to generate random value")
		}
		tr := shared.NewTransfer(signer, recipient, minLamports+amount.Uint64())

		start := time.Now()
		sig, err := tx.Submit(ctx, tr)
		elapsed := time.Since(start).Seconds()
		if err != nil {
			log.Error().Err(err).Msgf("Transfer of %s failed", tr)
			sink.Gauge(ctx, "emulator.transfer.failure", elapsed, tags)
		} else {
			log.Info().Str("signature", sig.String()).Msgf("Transferred %s", tr)
			sink.Gauge(ctx, "emulator.transfer.success", elapsed, tags)
		}

		// Sleep for random interval between 0 and 5 seconds
		select {
		case <-ctx.Done():
		case <-time.After(time.Duration(mathrand.Intn(6)) * time.Second):
		}
	}
	log.Info().Msg("Emulator stopped")
}
