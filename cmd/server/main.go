package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/digkill/aitrends-backend/internal/config"
	"github.com/digkill/aitrends-backend/internal/database"
	"github.com/digkill/aitrends-backend/internal/kie"
	"github.com/digkill/aitrends-backend/internal/notify"
	"github.com/digkill/aitrends-backend/internal/repository"
	"github.com/digkill/aitrends-backend/internal/server"
	"github.com/digkill/aitrends-backend/internal/service"
	"github.com/digkill/aitrends-backend/internal/storage"
	"github.com/digkill/aitrends-backend/internal/yookassa"
	"github.com/digkill/aitrends-backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("database migrate: %v", err)
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatalf("telegram bot: %v", err)
	}

	kieClient := kie.NewClient(cfg, logr)
	yooClient := yookassa.NewClient(cfg)
	notifier := notify.NewNotifier(logr)
	telegramNotifier := notify.NewTelegramNotifier(botAPI, logr)

	uploader, err := storage.NewUploader(storage.Config{
		Endpoint:      cfg.S3Endpoint,
		Region:        cfg.S3Region,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		Bucket:        cfg.S3Bucket,
		PublicBaseURL: cfg.S3PublicBaseURL,
		UsePathStyle:  cfg.S3UsePathStyle,
		Prefix:        cfg.S3Prefix,
	})
	if err != nil {
		log.Fatalf("storage uploader: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	generationRepo := repository.NewGenerationRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	planRepo := repository.NewPlanRepository(db)
	promoRepo := repository.NewPromoRepository(db)

	userService := service.NewUserService(logr, userRepo)
	generationService := service.NewGenerationService(cfg, logr, userRepo, generationRepo, templateRepo, kieClient, notifier)
	paymentService := service.NewPaymentService(cfg, logr, paymentRepo, userRepo, planRepo, yooClient, notifier, telegramNotifier)
	templateService := service.NewTemplateService(templateRepo)
	promoService := service.NewPromoService(logr, promoRepo, userRepo)

	if err := paymentService.EnsurePlans(ctx); err != nil {
		log.Fatalf("ensure plans: %v", err)
	}

	srv := server.NewServer(cfg, logr, userService, generationService, paymentService, templateService, promoService, uploader, kieClient)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("server stopped", "err", err)
	}
}
