package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/pvzzle/wasi/internal/api"
	"github.com/pvzzle/wasi/internal/bridge"
	"github.com/pvzzle/wasi/internal/bus"
	"github.com/pvzzle/wasi/internal/contacts"
	"github.com/pvzzle/wasi/internal/logger"
	"github.com/pvzzle/wasi/internal/network"
	"github.com/pvzzle/wasi/internal/provider"
	"github.com/pvzzle/wasi/internal/provider/keywallet"
	"github.com/pvzzle/wasi/internal/provider/rpcwallet"
	"github.com/pvzzle/wasi/internal/session"
	"github.com/pvzzle/wasi/internal/storage"
	"github.com/pvzzle/wasi/internal/storage/badgerkv"
	"github.com/pvzzle/wasi/internal/storage/memory"
	"github.com/pvzzle/wasi/internal/storage/mysqlkv"
	"github.com/pvzzle/wasi/internal/storage/pg"
	"github.com/pvzzle/wasi/internal/subs"
	"github.com/pvzzle/wasi/internal/tg"
	"github.com/pvzzle/wasi/internal/txtrack"

	tgbot "github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

func Run(ctx context.Context) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	log := logger.New(os.Stderr, cfg.LogLevel, cfg.LogPretty)

	table, err := loadNetworks(cfg)
	if err != nil {
		return err
	}

	kv, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := kv.Close(); err != nil {
			log.Error().Err(err).Msg("close storage")
		}
	}()

	p, closeProvider, err := openProvider(ctx, cfg, table, log)
	if err != nil {
		return err
	}
	defer closeProvider()

	history := txtrack.NewHistory(kv, log)
	book := contacts.NewBook(kv, log)

	var (
		wallet     *bridge.Bridge
		tracker    *txtrack.Tracker
		sessWallet session.Wallet
	)
	if p != nil {
		wallet, err = bridge.New(p, table, log)
		if err != nil {
			return err
		}
		sessWallet = wallet

		tracker = txtrack.New(wallet, history, txtrack.Config{
			Interval:    cfg.PollInterval,
			MaxAttempts: cfg.PollMaxAttempts,
		}, log)
		defer tracker.Close()

		if _, err := tracker.Resume(ctx); err != nil {
			log.Error().Err(err).Msg("resume pending transactions")
		}
	} else {
		log.Warn().Msg("no wallet provider configured; wallet routes answer provider_unavailable")
	}

	sess := session.New(kv, sessWallet, log)
	sess.OnReload(func(o session.Overview) {
		log.Info().Str("network", o.NetworkName).Str("balance", o.Balance).Msg("overview reloaded")
	})
	if _, err := sess.Restore(ctx); err != nil {
		log.Error().Err(err).Msg("restore session")
	}

	if cfg.TelegramToken != "" {
		if tracker == nil {
			log.Warn().Msg("TELEGRAM_TOKEN set without a wallet provider; bot disabled")
		} else if err := startBot(ctx, cfg, wallet, tracker, book, table, log); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewAPI(api.Deps{
			Wallet:   wallet,
			Tracker:  tracker,
			History:  history,
			Contacts: book,
			Session:  sess,
			Networks: table,
		}, log).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info().
		Str("addr", cfg.HTTPAddr).
		Str("storage", cfg.Storage).
		Str("provider", cfg.Provider).
		Int("networks", table.Len()).
		Msg("started")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	log.Info().Msg("stopped")
	return ctx.Err()
}

func loadNetworks(cfg Config) (*network.Table, error) {
	table := network.Default()
	if cfg.NetworksFile == "" {
		return table, nil
	}
	return network.LoadFile(cfg.NetworksFile, table)
}

func openStorage(ctx context.Context, cfg Config, log zerolog.Logger) (storage.KV, error) {
	var (
		kv  storage.KV
		err error
	)
	switch cfg.Storage {
	case "badger":
		kv, err = badgerkv.Open(cfg.BadgerDir, log)
	case "postgres":
		var pool *pgxpool.Pool
		pool, err = pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("pgxpool new: %w", err)
		}
		kv = pg.New(pool)
	case "mysql":
		kv, err = mysqlkv.Open(ctx, cfg.MySQLDSN, log)
	default:
		kv = memory.New()
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage, err)
	}

	if s, ok := kv.(storage.Schema); ok {
		if err := s.EnsureSchema(ctx); err != nil {
			_ = kv.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}
	return kv, nil
}

// openProvider returns a nil provider when none is configured.
func openProvider(ctx context.Context, cfg Config, table *network.Table, log zerolog.Logger) (provider.Provider, func(), error) {
	switch cfg.Provider {
	case "rpc":
		w, err := rpcwallet.Dial(ctx, cfg.ProviderRPCURL, rpcwallet.Config{WatchInterval: cfg.ProviderWatchInterval}, log)
		if err != nil {
			return nil, nil, err
		}
		go w.Watch(ctx)
		return w, w.Close, nil

	case "key":
		key, err := keywallet.FromHex(cfg.WalletPrivateKey)
		if err != nil {
			return nil, nil, err
		}
		d, ok := table.Lookup(cfg.WalletChainID)
		if !ok {
			return nil, nil, fmt.Errorf("WALLET_CHAIN_ID %s is not in the network table", cfg.WalletChainID)
		}
		params := bridge.ChainParams(d)
		if cfg.WalletRPCURL != "" {
			params.RPCURLs = []string{cfg.WalletRPCURL}
		}
		w, err := keywallet.New(ctx, key, params, nil, log)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("address", w.Address().Hex()).Str("chain_id", d.ChainID).Msg("key wallet ready")
		return w, w.Close, nil
	}
	return nil, func() {}, nil
}

func startBot(
	ctx context.Context,
	cfg Config,
	wallet *bridge.Bridge,
	tracker *txtrack.Tracker,
	book *contacts.Book,
	table *network.Table,
	log zerolog.Logger,
) error {
	subStore := subs.NewStore()
	notifyCh := make(chan bus.Notification, cfg.NotifyBuffer)

	notifier := bus.NewNotifier(ctx, subStore, table, notifyCh, log)
	tracker.OnUpdate(notifier.Handle)

	opts := []tgbot.Option{
		tgbot.WithWorkers(4),
		tgbot.WithNotAsyncHandlers(),
		tgbot.WithMiddlewares(tg.AllowChats(cfg.TelegramChats, log)),
	}
	if log.GetLevel() <= zerolog.DebugLevel {
		opts = append(opts, tgbot.WithDebug())
	}

	b, err := tgbot.New(cfg.TelegramToken, opts...)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}

	svc := tg.NewService(b, wallet, tracker, book, subStore, notifyCh, log)
	go svc.StartNotifyLoop(ctx)
	go b.Start(ctx)

	log.Info().Int("allowed_chats", len(cfg.TelegramChats)).Msg("telegram bot started")
	return nil
}
