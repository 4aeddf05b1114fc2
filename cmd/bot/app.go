package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"kagami/internal/await"
	"kagami/internal/driver/discord"
	"kagami/internal/session"
	"kagami/internal/transport"
	"kagami/pkg/kagami"
)

const (
	envConfigFile         = "KAGAMI_CONFIG_FILE"
	envToken              = "KAGAMI_TOKEN"
	defaultConfigFilePath = "config/bot.json"
)

type appConfig struct {
	logLevel   slog.Level
	token      string
	selfID     kagami.Snowflake
	apiBaseURL string
	gatewayURL string
}

type fileConfig struct {
	LogLevel   string `json:"log_level"`
	Token      string `json:"token"`
	SelfID     string `json:"self_id"`
	APIBaseURL string `json:"api_base_url"`
	GatewayURL string `json:"gateway_url"`
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.logLevel}))

	restClient, err := transport.NewClient(
		cfg.token,
		transport.WithBaseURL(cfg.apiBaseURL),
		transport.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("build rest client: %w", err)
	}

	factory, err := await.DefaultPredicateFactory()
	if err != nil {
		return fmt.Errorf("build predicate factory: %w", err)
	}

	botSession, err := session.New(restClient, factory, cfg.selfID, session.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("build session: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, err := discord.DialGateway(ctx, cfg.gatewayURL, cfg.token)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}

	gatewayDriver, err := discord.NewDriver(source, discord.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("build gateway driver: %w", err)
	}

	logger.InfoContext(ctx, "bot session started", "self_id", cfg.selfID.String())

	runErr := gatewayDriver.Start(ctx, botSession)
	if shutdownErr := gatewayDriver.Shutdown(context.Background()); shutdownErr != nil {
		logger.Warn("gateway shutdown failed", "error", shutdownErr)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run gateway driver: %w", runErr)
	}

	return nil
}

func loadConfig() (appConfig, error) {
	configFile := strings.TrimSpace(os.Getenv(envConfigFile))
	if configFile == "" {
		configFile = defaultConfigFilePath
	}

	cfg, err := parseConfigFile(configFile)
	if err != nil {
		return appConfig{}, err
	}

	if token := strings.TrimSpace(os.Getenv(envToken)); token != "" {
		cfg.token = token
	}
	if err := validateConfig(cfg); err != nil {
		return appConfig{}, fmt.Errorf("validate config file %s: %w", configFile, err)
	}

	return cfg, nil
}

func parseConfigFile(path string) (appConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return appConfig{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	var parsed fileConfig
	if err := json.Unmarshal(data, &parsed); err != nil {
		return appConfig{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	cfg := appConfig{
		logLevel:   slog.LevelInfo,
		token:      strings.TrimSpace(parsed.Token),
		apiBaseURL: strings.TrimSpace(parsed.APIBaseURL),
		gatewayURL: strings.TrimSpace(parsed.GatewayURL),
	}

	if rawLevel := strings.TrimSpace(parsed.LogLevel); rawLevel != "" {
		level, err := parseLogLevel(rawLevel)
		if err != nil {
			return appConfig{}, fmt.Errorf("parse log_level: %w", err)
		}
		cfg.logLevel = level
	}

	if rawSelfID := strings.TrimSpace(parsed.SelfID); rawSelfID != "" {
		selfID, err := kagami.ParseSnowflake(rawSelfID)
		if err != nil {
			return appConfig{}, fmt.Errorf("parse self_id: %w", err)
		}
		cfg.selfID = selfID
	}

	return cfg, nil
}

func validateConfig(cfg appConfig) error {
	if cfg.token == "" {
		return fmt.Errorf("token is required (config file or %s)", envToken)
	}
	if cfg.selfID == 0 {
		return fmt.Errorf("self_id is required")
	}
	if cfg.gatewayURL == "" {
		return fmt.Errorf("gateway_url is required")
	}

	return nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported level %q", raw)
	}
}
