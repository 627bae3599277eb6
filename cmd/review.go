package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/reviewloop/internal/config"
	"github.com/reviewloop/internal/llm"
	"github.com/reviewloop/internal/logging"
	"github.com/reviewloop/internal/orchestrator"
	"github.com/reviewloop/internal/ratelimit"
	"github.com/reviewloop/internal/reviewer"
	"github.com/reviewloop/pkg/models"
)

// ReviewCommand returns the CLI command for reviewing a code file
func ReviewCommand() *cli.Command {
	return &cli.Command{
		Name:      "review",
		Usage:     "Review a code file (direct path on your own API key, or --remote for the proxied API)",
		ArgsUsage: "[file]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "model",
				Usage: "Model identifier (overrides config)",
			},
			&cli.StringFlag{
				Name:  "remote",
				Usage: "Base URL of a reviewloop API server; uses the proxied path with this installation's device id",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the raw review outcome as JSON",
			},
		},
		Action: runReview,
	}
}

func runReview(c *cli.Context) error {
	code, err := readCode(c)
	if err != nil {
		return err
	}

	if remote := c.String("remote"); remote != "" {
		return runRemoteReview(c, remote, code)
	}

	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Setup(cfg.Server.LogLevel, true)

	caller, err := llm.NewClient(llm.Options{
		APIKey:  cfg.AI.APIKey,
		BaseURL: cfg.AI.BaseURL,
		Model:   cfg.AI.Model,
	})
	if err != nil {
		return fmt.Errorf("failed to create completion client: %w", err)
	}

	model := c.String("model")
	if model == "" {
		model = cfg.AI.Model
	}

	// Direct path: no limiter ever consulted, but the orchestrator
	// normalizes the result shape either way.
	orch := orchestrator.New(
		reviewer.New(cfg.AI.MaxAttempts),
		nil,
		ratelimit.New(ratelimit.NewMemoryStore(), cfg.Quota.DailyLimit),
	)

	outcome, err := orch.Review(c.Context, orchestrator.Request{
		Code:   code,
		Model:  model,
		Caller: caller,
	})
	if err != nil {
		return err
	}

	return printOutcome(c, outcome)
}

// runRemoteReview submits the code to a hosted API server on the proxied
// path, identified by this installation's device id.
func runRemoteReview(c *cli.Context, baseURL, code string) error {
	deviceID, err := EnsureDeviceID()
	if err != nil {
		return fmt.Errorf("failed to provision device id: %w", err)
	}

	body, err := json.Marshal(map[string]string{
		"code":  code,
		"model": c.String("model"),
	})
	if err != nil {
		return err
	}

	url := strings.TrimSuffix(baseURL, "/") + "/api/v1/review"
	req, err := http.NewRequestWithContext(c.Context, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Device-ID", deviceID)

	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("review request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var outcome models.ReviewOutcome
		if err := json.Unmarshal(data, &outcome); err != nil {
			return fmt.Errorf("failed to decode review outcome: %w", err)
		}
		return printOutcome(c, outcome)
	case http.StatusTooManyRequests:
		var quota struct {
			Limit   int       `json:"limit"`
			Used    int       `json:"used"`
			ResetAt time.Time `json:"resetAt"`
		}
		if err := json.Unmarshal(data, &quota); err == nil {
			return fmt.Errorf("daily review limit reached (%d/%d), resets at %s",
				quota.Used, quota.Limit, quota.ResetAt.Format(time.RFC3339))
		}
		return fmt.Errorf("daily review limit reached")
	default:
		return fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
}

func readCode(c *cli.Context) (string, error) {
	if c.NArg() > 0 {
		data, err := os.ReadFile(c.Args().First())
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		return string(data), nil
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("no code supplied: pass a file or pipe code on stdin")
	}
	return string(data), nil
}

func printOutcome(c *cli.Context, outcome models.ReviewOutcome) error {
	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(outcome)
	}

	if !outcome.Success {
		fmt.Printf("Review failed after %d attempt(s):\n", len(outcome.Attempts))
		for _, attempt := range outcome.Attempts {
			fmt.Printf("  attempt %d:\n", attempt.Attempt)
			for _, violation := range attempt.Violations {
				fmt.Printf("    - %s\n", violation)
			}
		}
		return fmt.Errorf("no valid review produced")
	}

	if len(outcome.Content.Issues) == 0 {
		fmt.Println("No issues found.")
		return nil
	}

	for _, issue := range outcome.Content.Issues {
		fmt.Printf("line %d [%s]: %s\n", issue.Line, issue.Severity, issue.Message)
		if issue.Suggestion != "" {
			fmt.Printf("  suggestion: %s\n", issue.Suggestion)
		}
	}
	fmt.Printf("\n%d issue(s), %d attempt(s), %d tokens\n",
		len(outcome.Content.Issues), len(outcome.Attempts), outcome.TotalTokens)

	return nil
}
