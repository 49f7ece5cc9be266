package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/apiaudit/config"
	"github.com/vadiminshakov/apiaudit/internal/audit"
	"github.com/vadiminshakov/apiaudit/internal/dataset"
	"github.com/vadiminshakov/apiaudit/internal/rest"
	"github.com/vadiminshakov/apiaudit/internal/storage/findings"
	"github.com/vadiminshakov/apiaudit/internal/suite"
	"github.com/vadiminshakov/apiaudit/internal/suite/scenarios"
	"github.com/vadiminshakov/apiaudit/internal/transport"
)

const (
	authTimeout     = 15 * time.Second
	bookWaitTimeout = 30 * time.Second
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Get()
	if err != nil {
		logger.Fatal("failed to get configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	journal, err := findings.NewWALStore(cfg.FindingsDir)
	if err != nil {
		logger.Fatal("failed to open findings journal", zap.Error(err))
	}
	defer journal.Close()

	maker, err := newAccount(ctx, "maker", cfg, cfg.Maker, logger)
	if err != nil {
		logger.Fatal("maker account setup failed", zap.Error(err))
	}
	defer maker.WS.Close()

	taker, err := newAccount(ctx, "taker", cfg, cfg.Taker, logger)
	if err != nil {
		logger.Fatal("taker account setup failed", zap.Error(err))
	}
	defer taker.WS.Close()

	args := &suite.Args{
		Symbol:      cfg.PrimaryPair,
		Amount:      cfg.Amount,
		InitialMid:  cfg.InitialMid,
		InitialLast: cfg.InitialLast,
		DataDelay:   cfg.DataDelay,
		PrimaryPair: cfg.PrimaryPair,
		VirtualPair: cfg.VirtualPair,
		MakerFee:    cfg.MakerFee,
		TakerFee:    cfg.TakerFee,
		Dust:        cfg.Dust,
		Maker:       maker,
		Taker:       taker,
		Rest:        rest.New(cfg.RESTURL),
	}

	runStart := journal.LastIndex()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return maker.WS.Run(ctx) })
	g.Go(func() error { return taker.WS.Run(ctx) })
	g.Go(func() error {
		defer stop()

		// auth confirmations arrive through the read loops above, so the
		// handshake can only complete once they are running
		for _, acct := range []*suite.Account{maker, taker} {
			if err := openAccount(ctx, acct, cfg); err != nil {
				return errors.Wrapf(err, "open %s account", acct.Data.Label())
			}
		}

		warmup := suite.StepAwaitOrderBook(cfg.PrimaryPair, bookWaitTimeout)
		if err := warmup.Exec(ctx, args); err != nil {
			return err
		}

		runner := suite.NewRunner(logger, journal, cfg.ContinueOnFailure)
		return runner.RunSuites(ctx, args, scenarios.All(args))
	})

	runErr := g.Wait()
	summarize(logger, journal, runStart)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("audit run failed", zap.Error(runErr))
		os.Exit(1)
	}
	logger.Info("audit run finished")
}

// summarize replays the findings this run journaled and reports the failures,
// so the outcome survives in the log even when the process is about to exit.
func summarize(logger *zap.Logger, journal *findings.WALStore, since uint64) {
	records, err := journal.FindingsAfter(since)
	if err != nil {
		logger.Warn("findings read-back failed", zap.Error(err))
		return
	}

	var failed int
	for _, rec := range records {
		if rec.Finding.Status != findings.StatusFail {
			continue
		}
		failed++
		logger.Error("FINDING",
			zap.Uint64("index", rec.Index),
			zap.String("suite", rec.Finding.Suite),
			zap.String("detail", rec.Finding.Detail))
	}
	logger.Info("findings summary",
		zap.Int("total", len(records)),
		zap.Int("failed", failed))
}

func newAccount(ctx context.Context, label string, cfg *config.Config, creds config.Credentials, logger *zap.Logger) (*suite.Account, error) {
	data := dataset.New(label, logger)

	ws := transport.New(transport.Config{
		URL:       cfg.WSURL,
		APIKey:    creds.Key,
		APISecret: creds.Secret,
	}, data, logger.Named(label))

	if err := ws.Connect(ctx); err != nil {
		return nil, err
	}

	reconciler := audit.NewBalanceReconciler(data, cfg.Dust, logger.Named(label))

	return &suite.Account{Data: data, WS: ws, Reconciler: reconciler}, nil
}

// openAccount authenticates the account channel and subscribes the public
// feeds for every configured symbol.
func openAccount(ctx context.Context, acct *suite.Account, cfg *config.Config) error {
	authCtx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	if err := acct.WS.Auth(authCtx); err != nil {
		return err
	}
	for _, symbol := range cfg.Symbols {
		if err := acct.WS.SubscribeTicker(symbol); err != nil {
			return err
		}
		if err := acct.WS.SubscribeOrderBook(symbol); err != nil {
			return err
		}
	}
	return nil
}
