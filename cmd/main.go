package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grievance/backend/internal/api/handler"
	"grievance/backend/internal/config"
	"grievance/backend/internal/grievance"
	"grievance/backend/internal/livefeed"
	"grievance/backend/internal/llm"
	"grievance/backend/internal/localization"
	"grievance/backend/internal/media"
	"grievance/backend/internal/metrics"
	"grievance/backend/internal/notify"
	"grievance/backend/internal/storage"
	"grievance/backend/internal/telegram"
	"grievance/backend/internal/triage"
	"grievance/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("Server stopped with error", zap.Error(err))
	}
	log.Info("Server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log.Info("Starting grievance backend", cfg.LogFields()...)
	metrics.Register()

	// 1. База даних і міграції
	db, err := storage.Open(cfg.DB)
	if err != nil {
		return err
	}
	if err := storage.Migrate(ctx, db, log); err != nil {
		return err
	}
	store := storage.NewStorageService(db)
	store.HashCost = config.BcryptCost

	// 2. Redis (необов'язково)
	var rdb *redis.Client
	var dedupe storage.MessageDeduper = storage.NoopDeduper{}
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect Redis: %w", err)
		}
		dedupe = storage.NewRedisDeduper(rdb, cfg.DedupeTTL)
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))
	}

	loc, err := localization.NewLocalizer()
	if err != nil {
		return err
	}

	// 3. LLM: без ключа всі операції працюють у резервному режимі
	var completer llm.Completer
	if cfg.LLM.APIKey != "" {
		c, err := llm.NewGenAIClient(ctx, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.VisionModel)
		if err != nil {
			return err
		}
		completer = c
	} else {
		log.Warn("LLM_API_KEY is not set, classification runs in fallback mode")
	}
	classifier := triage.NewClient(completer, log, cfg.LLM.Timeout)

	// 4. Канали сповіщень
	var (
		whatsapp notify.WhatsAppSender
		checker  handler.AccountChecker
		tgSender notify.TelegramChatSender
	)
	if cfg.Twilio.Enabled() {
		sender := notify.NewTwilioSender(cfg.Twilio, cfg.OutboundTimeout)
		whatsapp, checker = sender, sender
	} else {
		log.Warn("Twilio is not configured, WhatsApp notifications are disabled")
	}
	if cfg.TelegramToken != "" {
		sender, err := notify.NewTelegramSender(cfg.TelegramToken, cfg.OutboundTimeout)
		if err != nil {
			return err
		}
		tgSender = sender
	}
	dispatcher := notify.NewDispatcher(notify.Options{
		WhatsApp: whatsapp,
		Telegram: tgSender,
		Phones:   store,
		Localize: loc,
		Language: cfg.DefaultLanguage,
		Timeout:  cfg.OutboundTimeout,
		Logger:   log,
	})

	// 5. Live feed
	hub := livefeed.NewHub(log)
	var feed livefeed.Publisher = hub
	var bridge *livefeed.RedisBridge
	if rdb != nil {
		bridge = livefeed.NewRedisBridge(rdb, hub, log)
		feed = bridge
	}

	svc := grievance.NewService(grievance.Deps{
		Storage:      store,
		Triage:       classifier,
		Notifier:     dispatcher,
		Images:       storage.NewFileStore(cfg.UploadDir),
		Feed:         feed,
		Dedupe:       dedupe,
		Localizer:    loc,
		Language:     cfg.DefaultLanguage,
		Policy:       cfg.TransitionPolicy,
		InboundCity:  cfg.InboundCity,
		InboundState: cfg.InboundState,
		Logger:       log,
	})

	// 6. HTTP
	downloader := media.NewDownloader(cfg.OutboundTimeout)
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handler.NewHandler(store, svc, hub, handler.NewAuth(cfg.JWTSecret, cfg.JWTTTL), log)
	if checker != nil {
		h.Twilio = checker
	}
	h.Media = downloader.WithBasicAuth(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken)
	h.Ping = func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
	h.Options = handler.Options{
		TwilioAccountSID:  cfg.Twilio.AccountSID,
		TwilioAuthToken:   cfg.Twilio.AuthToken,
		ValidateSignature: cfg.Twilio.ValidateSignature,
		PublicBaseURL:     cfg.PublicBaseURL,
		LLMEnabled:        completer != nil,
	}

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler.NewRouter(h, log),
		ReadTimeout: 30 * time.Second,
		// Подача скарги робить до чотирьох послідовних викликів LLM
		WriteTimeout:   5 * cfg.LLM.Timeout,
		MaxHeaderBytes: 1 << 20,
	}

	// 7. Запуск основних goroutines
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	if bridge != nil {
		g.Go(func() error { return bridge.Listen(gctx) })
	}
	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBotService(cfg.TelegramToken, svc, store, downloader, log)
		if err != nil {
			return err
		}
		g.Go(func() error { return bot.Run(gctx) })
	}
	g.Go(func() error {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
