package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slot-relayer/pkg/config"
	"slot-relayer/pkg/ledger"
	"slot-relayer/pkg/listener"
	"slot-relayer/pkg/metrics"
	"slot-relayer/pkg/relayer"
	"slot-relayer/pkg/report"
	"slot-relayer/pkg/shared"
	"slot-relayer/pkg/transactor"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

var (
	optionConfig = &cli.StringFlag{
		Name:    "config",
		Usage:   "path to relayer config file",
		Value:   config.DefaultPath,
		EnvVars: []string{"SLOT_RELAYER_CONFIG"},
	}
)

func main() {
	app := &cli.App{
		Name:  "slot-relayer",
		Usage: "Submit a fixed SOL transfer for every new block",
		Commands: []*cli.Command{
			{
				Name:  "start",
				Usage: "Subscribe to block meta updates and start relaying",
				Flags: []cli.Flag{
					optionConfig,
				},
				Action: func(c *cli.Context) error {
					return start(c)
				},
			},
		}}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(app.Writer, "exited with error: %v\n", err)
		os.Exit(1)
	}
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

func metricsSink() metrics.Sink {
	apiKey := os.Getenv("DD_API_KEY")
	if apiKey == "" {
		return metrics.Noop{}
	}
	log.Info().Msg("Posting transfer metrics to datadog")
	return metrics.NewDatadog(apiKey, os.Getenv("DD_APP_KEY"))
}

func start(c *cli.Context) error {
	configFilePath := c.String(optionConfig.Name)
	log.Info().Str("config_file", configFilePath).Msg("loading config")
	cfg, err := config.LoadRelayer(configFilePath)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	setupLogging(cfg.LogLevel)

	signer, err := shared.ParseSigner(cfg.Wallet.SecretKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load secret key")
	}
	recipient, err := shared.ParseAddress(cfg.Wallet.To)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse recipient")
	}
	tr := shared.NewTransfer(signer, recipient, cfg.Wallet.Amount)
	log.Info().Msg("Relayer signing address: " + signer.PublicKey().String())

	client := ledger.NewRPCClient(ledger.Options{
		RPCUrl:     cfg.Wallet.RPCUrl,
		Commitment: shared.Confirmed,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := listener.NewListener(listener.Options{
		Endpoint:   cfg.Geyser.URL,
		Token:      cfg.Geyser.Token,
		Commitment: cfg.GeyserCommitment,
	})
	stream, err := l.Start(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to block meta updates")
	}

	r := relayer.NewRelayer(&relayer.Options{
		Stream:    stream,
		Submitter: transactor.NewTransactor(client),
		Transfer:  tr,
		Printer:   report.Stdio(),
		Metrics:   metricsSink(),
	})
	done := r.Start(ctx)

	interruptSigChan := make(chan os.Signal, 1)
	signal.Notify(interruptSigChan, os.Interrupt, syscall.SIGTERM)

	// Block until interrupt signal, the relayer exits on its own, or the
	// cli context is done.
	select {
	case <-done:
		return r.Err()
	case <-interruptSigChan:
	case <-c.Done():
	}
	fmt.Fprintf(c.App.Writer, "shutting down...\n")

	closedAllSuccessfully := make(chan struct{})
	go func() {
		defer close(closedAllSuccessfully)
		if err := r.TryCloseAll(); err != nil {
			log.Error().Err(err).Msg("failed to close relayer")
		}
	}()
	select {
	case <-closedAllSuccessfully:
	case <-time.After(15 * time.Second):
		log.Error().Msg("failed to close all in time")
	}
	return nil
}
