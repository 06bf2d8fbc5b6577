// Package main is the entry point of the bingo server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v3"

	"telegram-bingo/internal/auth"
	"telegram-bingo/internal/bot"
	"telegram-bingo/internal/config"
	httpapi "telegram-bingo/internal/http"
	"telegram-bingo/internal/http/handlers"
	"telegram-bingo/internal/notify"
	"telegram-bingo/internal/payment"
	"telegram-bingo/internal/pkg/db"
	"telegram-bingo/internal/pkg/lock"
	"telegram-bingo/internal/pubsub"
	"telegram-bingo/internal/repository"
	"telegram-bingo/internal/repository/memory"
	"telegram-bingo/internal/scheduler"
	"telegram-bingo/internal/service"
	"telegram-bingo/internal/ws"
)

var version = "dev"

type stores struct {
	rooms  repository.RoomStore
	cards  repository.CardStore
	ledger repository.LedgerStore
	db     handlers.Pinger
	close  func()
}

func main() {
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogger(cfg.Log)
	log.Info().Str("version", version).Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer st.close()

	var rdb redis.UniversalClient
	if cfg.Redis.Addr != "" {
		rdb, err = connectRedis(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
	}

	bus, err := newBus(ctx, rdb, cfg.Redis.Prefix+"events:")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start event bus")
	}
	defer bus.Close()
	feed := pubsub.NewFeed(bus)

	var (
		teleBot  *tele.Bot
		notifier notify.Notifier = notify.Nop{}
	)
	if cfg.Bot.Token != "" {
		teleBot, err = bot.NewTeleBot(cfg.Bot)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Telegram bot")
		}
		async := notify.NewAsync(notify.NewTelegram(teleBot, cfg.Bot.JoinURL, cfg.Wallet.Currency), 0, 0)
		defer async.Close()
		notifier = async
	} else {
		log.Warn().Msg("Telegram bot token not set, announcements disabled")
	}

	wallet := service.NewWalletService(st.ledger, feed, service.WalletLimits{
		MinDeposit:    decimal.NewFromFloat(cfg.Wallet.MinDeposit),
		MaxDeposit:    decimal.NewFromFloat(cfg.Wallet.MaxDeposit),
		MinWithdrawal: decimal.NewFromFloat(cfg.Wallet.MinWithdrawal),
		MaxWithdrawal: decimal.NewFromFloat(cfg.Wallet.MaxWithdrawal),
	})
	rooms := service.NewRoomService(st.rooms, st.cards, wallet, feed, notifier, service.RoomConfig{
		Commission:      cfg.Game.Commission(),
		CallInterval:    cfg.Game.CallInterval,
		StrictFreeRooms: cfg.Game.StrictFreeRooms,
		MaxEntryFee:     decimal.NewFromFloat(cfg.Game.MaxEntryFee),
	})
	cards := service.NewCardService(st.rooms, st.cards)
	stats := service.NewStatsService(st.rooms, st.ledger, cfg.Game.Commission(), time.Local)

	var leaser *lock.Leaser
	if rdb != nil {
		leaser = lock.NewLeaser(rdb, cfg.Redis.Prefix+"lease:", cfg.Redis.LeaseTTL)
	}
	caller := scheduler.NewCaller(rooms, leaser, scheduler.Config{
		Warmup:       cfg.Game.Warmup,
		CallInterval: cfg.Game.CallInterval,
	})
	rooms.SetScheduler(caller)
	if _, err := caller.Resume(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to resume number callers")
	}

	var deposits *payment.Deposits
	if cfg.Payment.Chapa.SecretKey != "" {
		deposits = payment.NewDeposits(payment.NewChapaClient(cfg.Payment.Chapa), wallet, cfg.Wallet.Currency)
	} else {
		log.Warn().Msg("Chapa secret key not set, deposits disabled")
	}

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret)
	router := httpapi.NewRouter(&handlers.Handler{
		Rooms:    rooms,
		Cards:    cards,
		Wallet:   wallet,
		Stats:    stats,
		Deposits: deposits,
		DB:       st.db,
		Version:  version,
	}, ws.NewHandler(feed, verifier, rooms, wallet, cfg.Server.AllowedOrigins), httpapi.Options{
		Server:      cfg.Server,
		Verifier:    verifier,
		Redis:       rdb,
		RedisPrefix: cfg.Redis.Prefix,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	if teleBot != nil && cfg.Bot.Poll {
		commands := bot.New(teleBot, &bot.Dependencies{Config: cfg, Rooms: rooms, Stats: stats})
		go commands.Start()
		defer commands.Stop()
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	caller.Stop()
	log.Info().Msg("Server stopped gracefully")
}

func setupLogger(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		log.Warn().Msg("Using in-memory storage, data is lost on restart")
		store := memory.New(cfg.Wallet.Currency)
		return &stores{rooms: store, cards: store, ledger: store, close: func() {}}, nil
	}

	pool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, pool.Pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &stores{
		rooms:  repository.NewRoomRepository(pool.Pool),
		cards:  repository.NewCardRepository(pool.Pool),
		ledger: repository.NewLedgerRepository(pool.Pool, cfg.Wallet.Currency),
		db:     pool,
		close:  pool.Close,
	}, nil
}

func connectRedis(ctx context.Context, cfg config.RedisConfig) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	log.Info().Str("addr", cfg.Addr).Msg("Connected to Redis")
	return client, nil
}

// newBus bridges events through Redis when available so every instance
// sees every room change.
func newBus(ctx context.Context, rdb redis.UniversalClient, prefix string) (pubsub.Bus, error) {
	if rdb == nil {
		return pubsub.NewLocalBus(), nil
	}
	bus, err := pubsub.NewRedisBus(ctx, rdb, prefix)
	if err != nil {
		return nil, err
	}
	return bus, nil
}
