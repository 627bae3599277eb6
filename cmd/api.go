package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/reviewloop/internal/api"
	"github.com/reviewloop/internal/config"
	"github.com/reviewloop/internal/llm"
	"github.com/reviewloop/internal/logging"
	"github.com/reviewloop/internal/orchestrator"
	"github.com/reviewloop/internal/ratelimit"
	"github.com/reviewloop/internal/reviewer"
)

// APICommand returns the CLI command for starting the API server
func APICommand() *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Start the review API server (proxied path with daily quotas)",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (overrides config)",
			},
		},
		Action: runAPI,
	}
}

func runAPI(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Setup(cfg.Server.LogLevel, true)

	shared, err := llm.NewClient(llm.Options{
		APIKey:  cfg.AI.APIKey,
		BaseURL: cfg.AI.BaseURL,
		Model:   cfg.AI.Model,
	})
	if err != nil {
		return fmt.Errorf("failed to create shared completion client: %w", err)
	}

	limiter := ratelimit.New(
		ratelimit.NewMemoryStore(),
		cfg.Quota.DailyLimit,
		ratelimit.WithMaxTrackedKeys(cfg.Quota.MaxTrackedKeys),
	)

	orch := orchestrator.New(reviewer.New(cfg.AI.MaxAttempts), shared, limiter)

	port := cfg.Server.Port
	if c.Int("port") > 0 {
		port = c.Int("port")
	}

	fmt.Printf("Starting reviewloop API server on port %d...\n", port)
	server := api.NewServer(port, orch, limiter)
	return server.Start()
}
