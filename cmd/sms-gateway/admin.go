// ABOUTME: Operator subcommands: init, token, and stats
// ABOUTME: stats talks to a running gateway's admin API over HTTP

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"

	"github.com/2389/sms-gateway/internal/auth"
	"github.com/2389/sms-gateway/internal/config"
)

const starterConfig = `# sms-gateway configuration
server:
  http_addr: ":8080"
  # public_url is the externally visible webhook URL, required when
  # twilio.validate_signature is enabled.
  public_url: ""

storage:
  driver: "sqlite"
  path: "data/conversations.db"

twilio:
  account_sid: "${TWILIO_ACCOUNT_SID}"
  auth_token: "${TWILIO_AUTH_TOKEN}"
  from_number: "${TWILIO_FROM_NUMBER}"
  validate_signature: false

openai:
  api_key: "${OPENAI_API_KEY}"
  model: "gpt-4o"
  timeout: "60s"
  max_retries: 2

chat:
  max_history_turns: 40

limits:
  daily_messages: 10
  max_segment_length: 1600

auth:
  jwt_secret: "${SMS_GATEWAY_JWT_SECRET}"

logging:
  level: "info"
  format: "text"
`

// adminConfig is the CLI-side config for talking to a running gateway.
type adminConfig struct {
	URL   string `toml:"url"`
	Token string `toml:"token"`
}

func getAdminConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "admin.toml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "sms-gateway", "admin.toml")
}

func loadAdminConfig() (*adminConfig, error) {
	path := getAdminConfigPath()
	var cfg adminConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if cfg.URL == "" {
		cfg.URL = "http://localhost:8080"
	}
	return &cfg, nil
}

func runInit() error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists at %s", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(starterConfig), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Print("✓ ")
	fmt.Printf("Wrote starter config to %s\n", configPath)
	fmt.Println("Edit it, then run: sms-gateway serve")
	return nil
}

func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	subject := fs.String("subject", "", "Subject name embedded in the token")
	ttl := fs.Duration("ttl", 30*24*time.Hour, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *subject == "" {
		return fmt.Errorf("--subject is required")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is not set in the config")
	}

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	token, err := verifier.Generate(*subject, *ttl)
	if err != nil {
		return fmt.Errorf("minting token: %w", err)
	}

	fmt.Println(token)
	return nil
}

func runStats(ctx context.Context) error {
	cfg, err := loadAdminConfig()
	if err != nil {
		return err
	}
	if cfg.Token == "" {
		return fmt.Errorf("token is not set in %s (mint one with: sms-gateway token --subject you)", getAdminConfigPath())
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL+"/api/conversations", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+cfg.Token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("reaching gateway at %s: %w", cfg.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Conversations []struct {
			ID               string    `json:"id"`
			Turns            int       `json:"turns"`
			MessageCount     int       `json:"message_count"`
			AssistantReplies int       `json:"assistant_replies"`
			TotalSent        int       `json:"total_sent"`
			EstimatedCost    float64   `json:"estimated_cost"`
			LastActiveAt     time.Time `json:"last_active_at"`
		} `json:"conversations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	if len(payload.Conversations) == 0 {
		fmt.Println("No conversations yet.")
		return nil
	}

	bold := color.New(color.Bold)
	gray := color.New(color.FgHiBlack)
	var totalCost float64

	for _, c := range payload.Conversations {
		bold.Println(c.ID)
		fmt.Printf("  messages: %d in / %d out, %d turns\n", c.MessageCount, c.TotalSent, c.Turns)
		fmt.Printf("  cost: $%.2f\n", c.EstimatedCost)
		gray.Printf("  last active: %s\n", c.LastActiveAt.Local().Format("2006-01-02 15:04"))
		totalCost += c.EstimatedCost
	}

	fmt.Println()
	bold.Printf("%d conversation(s), estimated $%.2f total\n", len(payload.Conversations), totalCost)
	return nil
}
