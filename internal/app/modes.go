package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	s3blob "github.com/alanyoungcy/kalshibot/internal/blob/s3"
	"github.com/alanyoungcy/kalshibot/internal/crypto"
	"github.com/alanyoungcy/kalshibot/internal/domain"
	"github.com/alanyoungcy/kalshibot/internal/engine"
	"github.com/alanyoungcy/kalshibot/internal/executor"
	"github.com/alanyoungcy/kalshibot/internal/feed"
	"github.com/alanyoungcy/kalshibot/internal/ledger"
	"github.com/alanyoungcy/kalshibot/internal/marketdata"
	"github.com/alanyoungcy/kalshibot/internal/model"
	"github.com/alanyoungcy/kalshibot/internal/platform/coinbase"
	"github.com/alanyoungcy/kalshibot/internal/platform/kalshi"
	"github.com/alanyoungcy/kalshibot/internal/platform/paper"
	"github.com/alanyoungcy/kalshibot/internal/server"
)

// PaperMode trades the simulated account against real exchange quotes. The
// Kalshi client stays unsigned; only public market-data endpoints are hit.
func (a *App) PaperMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting paper mode",
		slog.Float64("starting_balance", a.cfg.Strategy.PaperStartingBalance),
	)

	quotes := kalshi.NewClient(a.cfg.Kalshi.BaseURL, a.cfg.Kalshi.ApiKey)
	broker := paper.NewBroker(a.cfg.Strategy.PaperStartingBalance, a.logger)

	return a.runTrading(ctx, deps, domain.NamespacePaper, quotes, broker, broker, nil)
}

// LiveMode trades real money through the signed Kalshi client. The ledger is
// cross-checked against the broker's position list at startup.
func (a *App) LiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting live mode")

	client := kalshi.NewClient(a.cfg.Kalshi.BaseURL, a.cfg.Kalshi.ApiKey)

	keyPEM, err := crypto.LoadKey(crypto.KeyConfig{
		PlainKeyPath:     a.cfg.Kalshi.RsaPrivateKeyPath,
		EncryptedKeyPath: a.cfg.Kalshi.EncryptedKeyPath,
		KeyPassword:      a.cfg.Kalshi.KeyPassword,
	})
	if err != nil {
		return fmt.Errorf("live mode: %w", err)
	}
	if err := client.SetRSAPrivateKey(keyPEM); err != nil {
		return fmt.Errorf("live mode: %w", err)
	}

	return a.runTrading(ctx, deps, domain.NamespaceLive, client, client, client, client)
}

// runTrading assembles the trading stack for one namespace and runs every
// goroutine until the context is cancelled: the decision loop, the spot
// feed, the HTTP server, and the journal archiver.
func (a *App) runTrading(
	ctx context.Context,
	deps *Dependencies,
	ns domain.Namespace,
	quotes marketdata.QuoteSource,
	broker executor.Broker,
	balances engine.BalanceSource,
	verify engine.PositionLister,
) error {
	location, err := time.LoadLocation(a.cfg.Market.Timezone)
	if err != nil {
		return fmt.Errorf("app: load timezone %q: %w", a.cfg.Market.Timezone, err)
	}

	gateway := marketdata.NewGateway(
		quotes,
		coinbase.NewClient(a.cfg.Coinbase.RestHost, a.cfg.Coinbase.ProductID),
		deps.SpotCache,
		deps.VolCache,
		marketdata.Config{
			Series:        a.cfg.Market.Series,
			Location:      location,
			SpotSanityMin: a.cfg.Market.SpotSanityMin,
			SpotSanityMax: a.cfg.Market.SpotSanityMax,
			MinVolSamples: a.cfg.Strategy.MinVolSamples,
		},
		a.logger,
	)

	book := ledger.New(deps.PositionStore, ledger.Config{
		Namespace:             ns,
		EdgeIncreaseThreshold: a.cfg.Strategy.EdgeIncreaseThreshold,
		ExitEdgePct:           a.cfg.Strategy.ExitEdgePct,
	}, a.logger)

	if err := book.Reconcile(ctx); err != nil {
		return fmt.Errorf("app: reconcile ledger: %w", err)
	}

	sizer := model.NewSizer(model.SizerConfig{
		KellyCap:     a.cfg.Strategy.KellyCap,
		MaxContracts: a.cfg.Strategy.MaxContracts,
	})

	exec := executor.New(broker, executor.Config{
		OrderTimeout: a.cfg.Executor.OrderTimeout(),
		PollInterval: a.cfg.Executor.PollInterval(),
	}, a.logger)

	eng := engine.New(gateway, balances, exec, book, sizer,
		deps.TradeStore, deps.Notifier, deps.Stats,
		engine.Config{
			Namespace:            ns,
			MinEdgePct:           a.cfg.Strategy.MinEdgePct,
			MaxExposureFraction:  a.cfg.Strategy.MaxExposureFraction,
			MaxSlippageCents:     a.cfg.Strategy.MaxSlippageCents,
			TradingCutoffMinutes: a.cfg.Market.TradingCutoffMinutes,
			RefreshInterval:      a.cfg.Strategy.RefreshInterval(),
		},
		a.logger,
	)

	if verify != nil {
		if err := eng.VerifyBroker(ctx, verify); err != nil {
			a.logger.WarnContext(ctx, "broker verification failed",
				slog.String("error", err.Error()),
			)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return eng.Run(ctx)
	})

	if a.cfg.Coinbase.WsHost != "" {
		wsFeed := feed.NewCoinbaseWSFeed(
			a.cfg.Coinbase.WsHost,
			a.cfg.Coinbase.ProductID,
			deps.SpotCache,
			deps.VolCache,
			a.cfg.Market.SpotSanityMin,
			a.cfg.Market.SpotSanityMax,
			a.logger,
		)
		g.Go(func() error {
			return wsFeed.Run(ctx)
		})
	}

	if a.cfg.S3.Enabled && deps.BlobWriter != nil {
		archiver := s3blob.NewArchiver(deps.BlobWriter, deps.TradeStore, s3blob.ArchiverConfig{
			Namespace:     ns,
			RetentionDays: a.cfg.S3.RetentionDays,
			HourUTC:       a.cfg.S3.ArchiveHourUTC,
		}, a.logger)
		g.Go(func() error {
			return archiver.Run(ctx)
		})
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, book)
	}

	return g.Wait()
}

// startHTTPServer adds the operational HTTP server to the errgroup, with a
// graceful shutdown tied to context cancellation.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, book server.BookView) {
	srv := server.NewServer(
		server.Config{Port: a.cfg.Server.Port, Mode: a.cfg.Mode},
		book,
		map[string]server.Pinger{
			"postgres": deps.Postgres,
			"redis":    deps.Redis,
		},
		deps.Registry,
		a.logger,
	)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	})
}
