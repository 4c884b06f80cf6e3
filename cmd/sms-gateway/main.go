// ABOUTME: Entry point for the sms-gateway server
// ABOUTME: Bridges Twilio SMS to an OpenAI-compatible chat backend

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/sms-gateway/internal/auth"
	"github.com/2389/sms-gateway/internal/bridge"
	"github.com/2389/sms-gateway/internal/chat"
	"github.com/2389/sms-gateway/internal/config"
	"github.com/2389/sms-gateway/internal/conversation"
	"github.com/2389/sms-gateway/internal/dedupe"
	"github.com/2389/sms-gateway/internal/gateway"
	"github.com/2389/sms-gateway/internal/openai"
	"github.com/2389/sms-gateway/internal/twilio"
)

// version is overridden at build time via -ldflags.
var version = "dev"

const banner = `
                                         _
  ___ _ __ ___  ___        __ _  __ _| |_ _____      ____ _ _   _
 / __| '_ ' _ \/ __|_____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
 \__ \ | | | | \__ \_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
 |___/_| |_| |_|___/      \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
                          |___/                             |___/
`

// getConfigPath returns the path to the gateway config file.
// Priority: SMS_GATEWAY_CONFIG env var > XDG_CONFIG_HOME/sms-gateway/gateway.yaml > ~/.config/sms-gateway/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("SMS_GATEWAY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "sms-gateway", "gateway.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: sms-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                    Start the gateway server")
		fmt.Println("  init                     Write a starter config file")
		fmt.Println("  token --subject NAME     Mint an admin API token")
		fmt.Println("  stats                    Show conversation stats from a running gateway")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "token":
		err = runToken(os.Args[2:])
	case "stats":
		err = runStats(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Storage:  %s\n", cfg.Storage.Driver)
	green.Print("    ▶ ")
	fmt.Printf("Model:    %s\n", modelName(cfg))
	fmt.Println()

	logger.Info("starting sms-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"storage", cfg.Storage.Driver,
	)

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	backend, err := openai.NewClient(openai.Config{
		APIKey:     cfg.OpenAI.APIKey,
		Model:      cfg.OpenAI.Model,
		BaseURL:    cfg.OpenAI.BaseURL,
		Timeout:    cfg.OpenAI.Timeout,
		MaxRetries: cfg.OpenAI.MaxRetries,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating chat backend: %w", err)
	}

	engine := chat.New(store, backend, chat.Config{
		HistoryLimit: cfg.Chat.MaxHistoryTurns,
		SystemPrompt: cfg.Chat.SystemPrompt,
	}, logger)

	messenger := twilio.NewClient(twilio.Config{
		AccountSID: cfg.Twilio.AccountSID,
		AuthToken:  cfg.Twilio.AuthToken,
		FromNumber: cfg.Twilio.FromNumber,
		BaseURL:    cfg.Twilio.BaseURL,
	}, logger)

	seen := dedupe.New(cfg.Limits.DedupeTTL, cfg.Limits.DedupeMaxEntries)

	orch := bridge.New(store, engine, messenger, seen, bridge.Config{
		DailyLimit:       cfg.Limits.DailyMessages,
		MaxSegmentLength: cfg.Limits.MaxSegmentLength,
	}, logger)

	var verifier *auth.JWTVerifier
	if cfg.Auth.JWTSecret != "" {
		verifier = auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	} else {
		logger.Warn("auth.jwt_secret not set, admin API disabled")
	}

	server, err := gateway.New(gateway.Options{
		HTTPAddr:          cfg.Server.HTTPAddr,
		PublicURL:         cfg.Server.PublicURL,
		ValidateSignature: cfg.Twilio.ValidateSignature,
		TwilioAuthToken:   cfg.Twilio.AuthToken,
		Handler:           orch,
		Store:             store,
		Verifier:          verifier,
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return server.Run(ctx)
}

func openStore(cfg *config.Config) (conversation.Store, error) {
	if cfg.Storage.Driver == "memory" {
		return conversation.NewMemoryStore(), nil
	}
	return conversation.NewSQLiteStore(cfg.Storage.Path)
}

func modelName(cfg *config.Config) string {
	if cfg.OpenAI.Model != "" {
		return cfg.OpenAI.Model
	}
	return openai.DefaultModel
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
