package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/jphacks/os-2412/pkg/api"
	"github.com/jphacks/os-2412/pkg/auth"
	"github.com/jphacks/os-2412/pkg/converter"
	"github.com/jphacks/os-2412/pkg/database"
	"github.com/jphacks/os-2412/pkg/domain"
	"github.com/jphacks/os-2412/pkg/logger"
	"github.com/jphacks/os-2412/pkg/openai"
	"github.com/jphacks/os-2412/pkg/repository"
	"github.com/jphacks/os-2412/pkg/services"
	"github.com/jphacks/os-2412/pkg/telegram"
	"github.com/jphacks/os-2412/pkg/workers"
)

type Config struct {
	OpenAIToken          string        `env:"OPEN_AI_TOKEN,required"`
	OpenAIBaseURL        string        `env:"OPEN_AI_BASE_URL"`
	OpenAIVisionModel    string        `env:"OPEN_AI_VISION_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIChatModel      string        `env:"OPEN_AI_CHAT_MODEL" envDefault:"gpt-4o-mini"`
	OpenAISpeechModel    string        `env:"OPEN_AI_SPEECH_MODEL" envDefault:"tts-1"`
	OpenAISpeechVoice    string        `env:"OPEN_AI_SPEECH_VOICE" envDefault:"nova"`
	OpenAIRequestTimeout time.Duration `env:"OPEN_AI_REQUEST_TIMEOUT" envDefault:"60s"`
	NarrationLanguage    string        `env:"NARRATION_LANGUAGE" envDefault:"Japanese"`

	HTTPAddr           string        `env:"HTTP_ADDR" envDefault:":8080"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	UploadsDir         string        `env:"UPLOADS_DIR" envDefault:"static/uploads"`
	UploadsURLPrefix   string        `env:"UPLOADS_URL_PREFIX" envDefault:"/static/uploads"`
	MaxUploadBytes     int64         `env:"MAX_UPLOAD_BYTES" envDefault:"16777216"`
	VoiceTempDir       string        `env:"VOICE_TEMP_DIR" envDefault:"tmp/voices"`
	SessionTTL         time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"bolt"`
	BoltPath    string `env:"BOLT_PATH" envDefault:"static/uploads/metadata.db"`
	PgURL       string `env:"DATABASE_URL"`
	PgHost      string `env:"DB_HOST" envDefault:"localhost:65432"`

	TelegramBotToken          string  `env:"TELEGRAM_BOT_TOKEN"`
	TelegramAuthorizedUserIDs []int64 `env:"TELEGRAM_AUTHORIZED_USER_IDS" envSeparator:" "`

	LogLevel string `env:"LOG_LEVEL" envDefault:"DEBUG"`
	LogFile  string `env:"LOG_FILE"`
}

func main() {
	slog.SetDefault(slog.New(logger.NewHandler(os.Stderr, logger.DefaultOptions)))

	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env")
	}

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Invalid configuration", logger.Err(err))
		os.Exit(1)
	}

	log, closeLog := logger.Setup(os.Stderr, cfg.LogFile, logger.ParseLevel(cfg.LogLevel))
	slog.SetDefault(log)

	if err := runMain(cfg); err != nil {
		slog.Error("shutting down due to error", logger.Err(err))
		_ = closeLog()
		os.Exit(1)
	}
	slog.Info("shutdown complete")
	_ = closeLog()
}

func loadConfig() (Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing env config: %w", err)
	}
	return cfg, nil
}

func runMain(cfg Config) error {
	workerGroup, closers, err := setupWorkers(cfg)
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				slog.Error("closing resource", logger.Err(err))
			}
		}
	}()
	if err != nil {
		return err
	}

	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM)
		select {
		case s := <-sigCh:
			slog.Info("shutting down due to signal", "signal", s.String())
			cancelFn()
		case <-ctx.Done():
		}
	}()

	printBanner(os.Stderr, cfg)

	return workerGroup.Start(ctx)
}

func newRecordStore(cfg Config) (services.RecordRepository, io.Closer, error) {
	switch cfg.StoreDriver {
	case "bolt":
		repo, err := repository.NewBoltRecordRepository(cfg.BoltPath)
		if err != nil {
			return nil, nil, fmt.Errorf("creating bolt record store: %w", err)
		}
		return repo, repo, nil
	case "postgres":
		db, err := database.NewPostgres(cfg.PgURL, cfg.PgHost)
		if err != nil {
			return nil, nil, fmt.Errorf("creating db: %w", err)
		}
		return repository.NewPostgresRecordRepository(db), db, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

func setupWorkers(cfg Config) (workers.Group, []io.Closer, error) {
	var (
		workerGroup workers.Group
		closers     []io.Closer
	)

	records, closer, err := newRecordStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, closer)

	openAIClient, err := openai.NewClient(openai.Config{
		Token:          cfg.OpenAIToken,
		BaseURL:        cfg.OpenAIBaseURL,
		VisionModel:    cfg.OpenAIVisionModel,
		ChatModel:      cfg.OpenAIChatModel,
		SpeechModel:    cfg.OpenAISpeechModel,
		SpeechVoice:    cfg.OpenAISpeechVoice,
		RequestTimeout: cfg.OpenAIRequestTimeout,
	})
	if err != nil {
		return nil, closers, fmt.Errorf("creating open ai client: %w", err)
	}

	media, err := repository.NewMediaStore(cfg.UploadsDir, cfg.UploadsURLPrefix)
	if err != nil {
		return nil, closers, err
	}
	sessions := repository.NewSessionRepository(cfg.SessionTTL)

	speechService := services.NewSpeechService(openAIClient, media)
	journeyService := services.NewJourneyService(
		services.NewAnalysisService(openAIClient, cfg.NarrationLanguage),
		services.NewConversationService(openAIClient, speechService, cfg.NarrationLanguage),
		speechService,
		services.NewVoiceService(&converter.OggToMP3{}, openAIClient, cfg.VoiceTempDir),
		records,
		sessions,
		media,
	)

	router := api.NewRouter(api.Config{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		UploadsDir:       media.Dir(),
		UploadsURLPrefix: cfg.UploadsURLPrefix,
		MaxUploadBytes:   cfg.MaxUploadBytes,
		SessionTTL:       cfg.SessionTTL,
	}, journeyService)

	workerGroup = append(workerGroup,
		workers.NewHTTPServer(cfg.HTTPAddr, router),
		workers.NewSessionJanitor(sessions, janitorInterval(cfg.SessionTTL)),
	)

	if cfg.TelegramBotToken == "" {
		slog.Info("TELEGRAM_BOT_TOKEN not set, telegram front end disabled")
		return workerGroup, closers, nil
	}

	telegramClient, err := telegram.NewClient(cfg.TelegramBotToken)
	if err != nil {
		return nil, closers, fmt.Errorf("creating telegram client: %w", err)
	}

	responseCh := make(chan domain.Response)
	handler := telegram.NewHandler(
		journeyService,
		repository.NewChatSettingsRepository(),
		telegramClient,
		responseCh,
	)

	workerGroup = append(workerGroup, workers.NewTelegramUpdateListener(
		telegramClient,
		auth.NewAuthenticator(cfg.TelegramAuthorizedUserIDs),
		handler,
		responseCh,
	))

	return workerGroup, closers, nil
}

func janitorInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > time.Hour {
		return 10 * time.Minute
	}
	return max(ttl/4, time.Second)
}

func printBanner(w io.Writer, cfg Config) {
	bold := color.New(color.FgCyan, color.Bold)
	_, _ = bold.Fprintln(w, "ScanJourney")
	_, _ = fmt.Fprintf(w, "  http     %s\n", color.GreenString(cfg.HTTPAddr))
	_, _ = fmt.Fprintf(w, "  store    %s\n", color.GreenString(cfg.StoreDriver))
	_, _ = fmt.Fprintf(w, "  language %s\n", color.GreenString(cfg.NarrationLanguage))
	_, _ = fmt.Fprintf(w, "  telegram %s\n", color.GreenString(fmt.Sprint(cfg.TelegramBotToken != "")))
}
