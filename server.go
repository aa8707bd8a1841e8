package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/surya-d-naidu/HealthCareBot/config"
	"github.com/surya-d-naidu/HealthCareBot/conversation"
	"github.com/surya-d-naidu/HealthCareBot/httpapi"
	"github.com/surya-d-naidu/HealthCareBot/logger"
	"github.com/surya-d-naidu/HealthCareBot/modelapi"
	"github.com/surya-d-naidu/HealthCareBot/modelapi/deepgramapi"
	"github.com/surya-d-naidu/HealthCareBot/modelapi/geminiapi"
	"github.com/surya-d-naidu/HealthCareBot/modelapi/openaiapi"
	"github.com/surya-d-naidu/HealthCareBot/telegram"

	"github.com/hyperdxio/opentelemetry-logs-go/exporters/otlp/otlplogs"
	sdk "github.com/hyperdxio/opentelemetry-logs-go/sdk/logs"
	"github.com/hyperdxio/otel-config-go/otelconfig"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	Execute()
}

// serve runs the HTTP API, the session janitor and, when configured, the
// Telegram bot until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config) error {
	otelShutdown, err := otelconfig.ConfigureOpenTelemetry()
	if err != nil {
		return fmt.Errorf("error setting up OTel SDK: %w", err)
	}
	defer otelShutdown()

	var loggerProvider *sdk.LoggerProvider
	if cfg.Production {
		logExporter, err := otlplogs.NewExporter(ctx)
		if err != nil {
			return fmt.Errorf("error setting up log exporter: %w", err)
		}
		loggerProvider = sdk.NewLoggerProvider(sdk.WithBatcher(logExporter))
		defer loggerProvider.Shutdown(context.Background())
	}

	LogMiddleware := logger.Connect(logger.LoggerConnectProps{Production: cfg.Production, LoggerProvider: loggerProvider})
	defer LogMiddleware.Sync()
	Logger := LogMiddleware.Logger(ctx)

	gateway, err := connectGateway(ctx, cfg, LogMiddleware)
	if err != nil {
		return err
	}

	store := conversation.NewStore(conversation.StoreConnectProps{Logger: LogMiddleware, TTL: cfg.SessionTTL})
	engine := conversation.NewEngine(conversation.EngineConnectProps{
		Logger:      LogMiddleware,
		Store:       store,
		Gateway:     gateway,
		Escalator:   conversation.NewEscalator(conversation.EscalatorConnectProps{Logger: LogMiddleware, Delay: cfg.EscalationDelay}),
		CallTimeout: cfg.Timeout,
	})

	server := &http.Server{
		Addr: net.JoinHostPort("", cfg.Port),
		Handler: httpapi.NewHandler(httpapi.ServerConnectProps{
			Logger:       LogMiddleware,
			Engine:       engine,
			AllowOrigins: cfg.AllowOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		Logger.Info("[Server] Listening", zap.String("addr", server.Addr), zap.String("provider", string(cfg.Provider)), zap.Bool("production", cfg.Production))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		Logger.Info("[Server] Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return store.Run(ctx)
	})

	if cfg.TelegramToken != "" {
		bot, err := connectTelegram(ctx, cfg, LogMiddleware, engine)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return bot.Listen(ctx)
		})
	} else {
		Logger.Info("[Telegram] TELEGRAM_BOT_TOKEN not set, bot disabled")
	}

	return g.Wait()
}

func connectGateway(ctx context.Context, cfg *config.Config, LogMiddleware *logger.LogMiddleware) (modelapi.Gateway, error) {
	openAIProps := openaiapi.OpenAIConnectProps{
		Logger:      LogMiddleware,
		Model:       cfg.OpenAIModel,
		MaxWorkers:  cfg.MaxWorkers,
		MaxAttempts: cfg.MaxAttempts,
	}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		openAIProps.APIKey = cfg.OpenAIKey
		openAIProps.BaseURL = cfg.OpenAIURL
	case config.ProviderGroq:
		openAIProps.APIKey = cfg.GroqKey
		openAIProps.BaseURL = openaiapi.GROQ_BASE_URL
	case config.ProviderDeepInfra:
		openAIProps.APIKey = cfg.DeepInfraKey
		openAIProps.BaseURL = openaiapi.DEEPINFRA_BASE_URL
	default:
		return geminiapi.Connect(ctx, geminiapi.GeminiConnectProps{
			Logger:      LogMiddleware,
			APIKey:      cfg.GeminiKey,
			Model:       cfg.GeminiModel,
			MaxWorkers:  cfg.MaxWorkers,
			MaxAttempts: cfg.MaxAttempts,
		})
	}

	return openaiapi.Connect(ctx, openAIProps)
}

func connectTelegram(ctx context.Context, cfg *config.Config, LogMiddleware *logger.LogMiddleware, engine *conversation.Engine) (*telegram.Telegram, error) {
	props := telegram.TelegramConnectProps{
		Logger: LogMiddleware,
		Token:  cfg.TelegramToken,
		Debug:  cfg.TelegramDebug,
		Engine: engine,
	}

	if cfg.DeepgramKey != "" {
		dg, err := deepgramapi.Connect(ctx, deepgramapi.DeepgramConnectProps{Logger: LogMiddleware, APIKey: cfg.DeepgramKey})
		if err != nil {
			return nil, err
		}
		props.Transcriber = dg
	} else {
		LogMiddleware.Logger(ctx).Info("[Telegram] DEEPGRAM_API_KEY not set, voice notes disabled")
	}

	return telegram.Connect(ctx, props)
}
