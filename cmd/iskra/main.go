package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/iskralabs/iskra/common/environment"
	"github.com/iskralabs/iskra/common/version"
	"github.com/iskralabs/iskra/internal/iskra/app"
	"github.com/iskralabs/iskra/internal/iskra/nlp"
	"github.com/iskralabs/iskra/internal/iskra/payments"
	"github.com/iskralabs/iskra/internal/iskra/telegram"
)

func main() {
	fmt.Printf("Iskra Companion Bot\n")
	fmt.Printf("Version: %s\n", version.Version)
	fmt.Printf("Commit: %s\n", version.GitCommit)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Println()

	// A local .env is a convenience for development; absence is not an error.
	if err := godotenv.Load(); err == nil {
		fmt.Println("Loaded configuration from .env")
	}

	config := loadConfig()

	if config.Telegram.Token == "" {
		fmt.Fprintf(os.Stderr, "Error: TELEGRAM_TOKEN is required\n")
		os.Exit(1)
	}
	if config.NLP.APIKey == "" {
		fmt.Fprintf(os.Stderr, "Error: NLP_API_KEY is required\n")
		os.Exit(1)
	}
	if config.Payments != nil && config.Payments.WebhookSecret == "" {
		fmt.Fprintf(os.Stderr, "Error: PAYMENT_WEBHOOK_SECRET is required when the payment gateway is configured\n")
		os.Exit(1)
	}

	iskra, err := app.New(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize Iskra: %v\n", err)
		os.Exit(1)
	}
	defer iskra.Stop()

	if err := iskra.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running Iskra: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration from environment variables.
func loadConfig() *app.Config {
	cfg := &app.Config{
		DatabasePath: environment.StringOr("DATABASE_PATH", "./iskra.db"),
		Telegram: telegram.Config{
			Token: environment.StringOr("TELEGRAM_TOKEN", ""),
		},
		NLP: nlp.Config{
			APIKey:  environment.StringOr("NLP_API_KEY", ""),
			BaseURL: environment.StringOr("NLP_ENDPOINT", ""),
			Model:   environment.StringOr("NLP_MODEL", ""),
		},
		PersonaPath:    environment.StringOr("PERSONA_PATH", ""),
		FreeLimit:      environment.IntOr("FREE_LIMIT", 0),
		MemoryWindow:   environment.IntOr("MEMORY_WINDOW", 0),
		AdminUserID:    environment.Int64Or("ADMIN_USER_ID", 0),
		OperatorChatID: environment.Int64Or("OPERATOR_CHAT_ID", 0),
		HTTPAddr:       environment.StringOr("HTTP_ADDR", ""),
	}

	// The payment flow activates only when the gateway is configured; the
	// bot otherwise falls back to the operator consent flow at the paywall.
	if base := environment.StringOr("PAYMENT_BASE_URL", ""); base != "" {
		cfg.Payments = &app.PaymentsConfig{
			Gateway: payments.ClientConfig{
				BaseURL:   base,
				APIKey:    environment.StringOr("PAYMENT_API_KEY", ""),
				Amount:    environment.StringOr("PAYMENT_AMOUNT", "499.00"),
				Currency:  environment.StringOr("PAYMENT_CURRENCY", "RUB"),
				ReturnURL: environment.StringOr("PAYMENT_RETURN_URL", ""),
			},
			WebhookSecret: environment.StringOr("PAYMENT_WEBHOOK_SECRET", ""),
			GrantDays:     environment.IntOr("PAYMENT_GRANT_DAYS", 0),
		}
	}

	return cfg
}
