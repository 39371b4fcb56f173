package main

import (
	"fmt"
	"os"
	"slot-relayer/pkg/balance"
	"slot-relayer/pkg/config"
	"slot-relayer/pkg/fanout"
	"slot-relayer/pkg/ledger"
	"slot-relayer/pkg/report"
	"slot-relayer/pkg/transactor"
	"slot-relayer/pkg/transfer"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

var (
	optionConfig = &cli.StringFlag{
		Name:    "config",
		Usage:   "path to CLI config file",
		Value:   config.DefaultPath,
		EnvVars: []string{"SLOT_RELAYER_CLI_CONFIG"},
	}
)

func main() {
	app := &cli.App{
		Name:  "slot-relayer-cli",
		Usage: "Check wallet balances and send batches of SOL transfers",
		Commands: []*cli.Command{
			{
				Name:  "balances",
				Usage: "Print the balance of every configured wallet",
				Flags: []cli.Flag{
					optionConfig,
				},
				Action: func(c *cli.Context) error {
					return balances(c)
				},
			},
			{
				Name:  "transfer",
				Usage: "Submit every configured transfer concurrently",
				Flags: []cli.Flag{
					optionConfig,
				},
				Action: func(c *cli.Context) error {
					return transfers(c)
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(app.Writer, "Exited with error: %v\n", err)
		os.Exit(1)
	}
}

func balances(c *cli.Context) error {
	cfg, err := config.LoadBalances(c.String(optionConfig.Name))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg.LogLevel)

	client := ledger.NewRPCClient(ledger.Options{
		RPCUrl:     cfg.RPCUrl,
		Commitment: cfg.CommitmentLevel,
	})
	checker := balance.NewChecker(client, report.Stdio())
	if _, err := checker.CheckAll(c.Context, cfg.Wallets, fanout.Options{Limit: cfg.MaxConcurrency}); err != nil {
		return fmt.Errorf("balance check: %w", err)
	}
	return nil
}

func transfers(c *cli.Context) error {
	cfg, err := config.LoadTransfers(c.String(optionConfig.Name))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg.LogLevel)

	client := ledger.NewRPCClient(ledger.Options{
		RPCUrl:     cfg.RPCUrl,
		Commitment: cfg.CommitmentLevel,
	})
	entries := make([]transfer.Entry, len(cfg.Transfers))
	for i, t := range cfg.Transfers {
		entries[i] = transfer.Entry{SecretKey: t.SecretKey, To: t.To, Amount: t.Amount}
	}

	batch := transfer.NewBatch(transactor.NewTransactor(client), report.Stdio())
	if _, err := batch.Execute(c.Context, entries, fanout.Options{Limit: cfg.MaxConcurrency}); err != nil {
		return fmt.Errorf("transfer batch: %w", err)
	}
	return nil
}

func setupLogging(logLevel string) {
	lvl, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse log level")
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}
