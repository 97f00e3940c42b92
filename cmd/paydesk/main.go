// Paydesk server — answers payment-operations questions over a retrieval
// corpus ingested from team chat platforms, with confidence-gated escalation
// to a human.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/paydesk/paydesk/pkg/agent"
	"github.com/paydesk/paydesk/pkg/anonymizer"
	"github.com/paydesk/paydesk/pkg/api"
	"github.com/paydesk/paydesk/pkg/chunker"
	"github.com/paydesk/paydesk/pkg/cleanup"
	"github.com/paydesk/paydesk/pkg/collectors"
	"github.com/paydesk/paydesk/pkg/config"
	"github.com/paydesk/paydesk/pkg/database"
	"github.com/paydesk/paydesk/pkg/ingest"
	"github.com/paydesk/paydesk/pkg/knowledge"
	"github.com/paydesk/paydesk/pkg/llm"
	"github.com/paydesk/paydesk/pkg/mcp"
	"github.com/paydesk/paydesk/pkg/notifier"
	"github.com/paydesk/paydesk/pkg/services"
	"github.com/paydesk/paydesk/pkg/tools"
	"github.com/paydesk/paydesk/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// setupLogging configures the default slog handler: JSON in production, text
// elsewhere, level from LOG_LEVEL.
func setupLogging(env config.Environment) {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if env == config.EnvironmentProduction {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	}

	ctx := context.Background()

	settings, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	setupLogging(settings.Environment)

	slog.Info("Starting paydesk",
		"version", version.Full(),
		"environment", settings.Environment)

	// Database (migrations run inside NewClient)
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbClient.Close()
	slog.Info("Connected to PostgreSQL")

	// Out-of-band alerting (nil-safe when disabled)
	alerts := notifier.New(settings.Notifier, settings.Environment)
	defer alerts.Stop()

	// Providers and knowledge store
	factory := llm.NewFactory(settings.Providers, settings.Embeddings)
	store := knowledge.NewStore(dbClient, settings.Embeddings.Dimension)

	// Domain services
	sessionService := services.NewSessionService(dbClient)
	configService := services.NewConfigService(dbClient, config.DefaultAgentConfigName)
	promptService := services.NewPromptService(dbClient)
	sourceService := services.NewSourceService(dbClient)

	// Ingestion pipeline
	var anon *anonymizer.Anonymizer
	if settings.PII.Active() {
		anon = anonymizer.New(settings.PII)
	}
	splitter := chunker.New(settings.Chunking.Size, settings.Chunking.Overlap,
		chunker.NewTokenCounter(settings.Embeddings.Model))
	pipeline := ingest.NewPipeline(store, sourceService, anon, splitter, factory, alerts, settings.PII)
	coordinator := ingest.NewCoordinator(pipeline, settings.Ingestion.QueueSize)

	// Tools: built-ins, credential cipher, remote MCP servers
	registry := tools.NewRegistry()
	registry.Register(tools.NewCalculator())
	if search := tools.NewWebSearch(settings.Tools.WebSearch); search != nil {
		registry.Register(search)
	}
	var cipher *tools.CredentialCipher
	if settings.Tools.CredentialsKey != "" {
		cipher, err = tools.NewCredentialCipher(settings.Tools.CredentialsKey)
		if err != nil {
			slog.Error("Invalid tool credentials key", "error", err)
			os.Exit(1)
		}
	}
	toolService := tools.NewService(dbClient, registry, cipher)
	if err := toolService.SyncBuiltins(ctx); err != nil {
		slog.Error("Failed to sync built-in tools", "error", err)
		os.Exit(1)
	}

	mcpManager := mcp.NewManager(dbClient, registry, settings.MCP)
	if err := mcpManager.Start(ctx); err != nil {
		slog.Warn("MCP manager failed to start, remote tools unavailable", "error", err)
	}

	// Agent graph and chat orchestration
	qa := agent.New(factory, store, promptService, registry, agent.Options{
		ToolTimeout:       settings.Tools.InvokeTimeout,
		EscalationMessage: settings.Escalation.Message,
	})
	chatService := services.NewChatService(qa, sessionService, configService,
		settings.Environment, settings.History)

	// Collectors
	slackCollector := collectors.NewSlackCollector(settings.Collectors.Slack, coordinator)
	whatsappCollector := collectors.NewWhatsAppCollector(settings.Collectors.WhatsApp, coordinator)
	uploadCollector := collectors.NewUploadCollector(coordinator)
	telegramHook := collectors.NewTelegramWebhook(settings.Collectors.Telegram, coordinator)

	var telegramCollector *collectors.TelegramCollector
	if settings.Collectors.Telegram.Enabled {
		telegramCollector = collectors.NewTelegramCollector(settings.Collectors.Telegram, coordinator, alerts)
		if err := telegramCollector.Start(ctx); err != nil {
			slog.Error("Failed to start Telegram collector", "error", err)
			telegramCollector = nil
		}
	}
	recordSourceStates(ctx, sourceService, settings, telegramCollector != nil)

	// Retention
	retention := cleanup.NewService(settings.Retention, store, sessionService)
	retention.Start(ctx)

	// HTTP surface
	deps := api.Deps{
		Chat:         chatService,
		Sessions:     sessionService,
		Documents:    store,
		Upload:       uploadCollector,
		Slack:        slackCollector,
		WhatsApp:     whatsappCollector,
		TelegramHook: telegramHook,
		Configs:      configService,
		Prompts:      promptService,
		Tools:        toolService,
		MCP:          mcpManager,
		Sources:      sourceService,
		Queues:       coordinator,
		DB:           dbClient,
		Alerts:       alerts,
	}
	if telegramCollector != nil {
		deps.Telegram = telegramCollector
	}
	server := api.NewServer(*settings, deps)
	server.Start()

	// Block until shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("Shutting down", "signal", sig.String())

	// Stop taking requests first, then drain the pipeline, then the rest.
	shutdownTimeout := settings.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}
	if telegramCollector != nil {
		if err := telegramCollector.Stop(shutdownCtx); err != nil {
			slog.Error("Telegram collector shutdown failed", "error", err)
		}
	}
	retention.Stop()
	mcpManager.Stop()

	drainTimeout := settings.Ingestion.DrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = 30 * time.Second
	}
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), drainTimeout)
	defer cancelDrain()
	if err := coordinator.Stop(drainCtx); err != nil {
		slog.Error("Ingestion drain failed", "error", err)
	}

	slog.Info("Shutdown complete")
}

// recordSourceStates reflects collector configuration into the source_status
// table so the admin surface shows what is running.
func recordSourceStates(ctx context.Context, sources *services.SourceService,
	settings *config.Settings, telegramRunning bool) {
	states := []struct {
		source  config.Source
		enabled bool
		running bool
	}{
		{config.SourceSlack, settings.Collectors.Slack.Enabled, settings.Collectors.Slack.Enabled},
		{config.SourceWhatsApp, settings.Collectors.WhatsApp.Enabled, settings.Collectors.WhatsApp.Enabled},
		{config.SourceTelegram, settings.Collectors.Telegram.Enabled, telegramRunning},
		{config.SourceAdminUpload, true, true},
	}
	for _, st := range states {
		if err := sources.SetState(ctx, st.source, st.enabled, st.running); err != nil {
			slog.Warn("Failed to record source state", "source", st.source, "error", err)
		}
	}
}
