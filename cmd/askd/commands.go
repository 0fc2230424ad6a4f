package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"askd/internal/auth"
	"askd/internal/config"
	"askd/internal/inference"
	"askd/internal/qa"
	"askd/internal/storage"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Submit a question to the running server",
	Long: `Submit a question to the running server.

Examples:
  askd ask "中国的首都是哪里？"
  askd ask --token $TOKEN --wait "What is the capital of China?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		token, _ := cmd.Flags().GetString("token")
		wait, _ := cmd.Flags().GetBool("wait")

		client, err := newAPIClient(token)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		resp, err := client.post(ctx, "/qa/ask", map[string]string{"question": question})
		if err != nil {
			return err
		}

		var submitted struct {
			TaskID string `json:"task_id"`
		}
		if err := decodeJSON(resp, &submitted); err != nil {
			return err
		}

		if !wait {
			printSuccess("Queued task %s", submitted.TaskID)
			fmt.Println(submitted.TaskID)
			return nil
		}

		printStep("Waiting for answer (task %s)...", submitted.TaskID)
		return pollResult(ctx, client, submitted.TaskID, true)
	},
}

// --- result ---

var resultCmd = &cobra.Command{
	Use:   "result <task_id>",
	Short: "Fetch the status or answer of a submitted question",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("token")
		wait, _ := cmd.Flags().GetBool("wait")

		client, err := newAPIClient(token)
		if err != nil {
			return err
		}

		return pollResult(cmd.Context(), client, args[0], wait)
	},
}

func pollResult(ctx context.Context, client *apiClient, taskID string, wait bool) error {
	for {
		resp, err := client.get(ctx, "/qa/ask/result/"+taskID)
		if err != nil {
			return err
		}

		var result struct {
			Status string `json:"status"`
			Answer string `json:"answer"`
			Error  string `json:"error"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		switch result.Status {
		case qa.StateSuccess:
			fmt.Println(result.Answer)
			return nil
		case qa.StateFailure:
			return fmt.Errorf("task failed: %s", result.Error)
		case qa.StateUnknown:
			return fmt.Errorf("unknown task %s", taskID)
		}

		if !wait {
			fmt.Println(result.Status)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func init() {
	askCmd.Flags().String("token", "", "bearer token (default: $ASKD_TOKEN, or guest)")
	askCmd.Flags().Bool("wait", false, "poll until the answer is ready")
	resultCmd.Flags().String("token", "", "bearer token (default: $ASKD_TOKEN, or guest)")
	resultCmd.Flags().Bool("wait", false, "poll until the task is terminal")
}

// --- tasks ---

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List recent tasks from the queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		tasks, err := store.ListRecentTasks(limit)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Println("No tasks found.")
			return nil
		}

		rows := make([][]string, 0, len(tasks))
		for _, t := range tasks {
			rows = append(rows, []string{
				shortID(t.ID),
				t.Status,
				fmt.Sprintf("%d", t.Attempts),
				truncate(t.Question, 60),
				t.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
			})
		}
		fmt.Println(renderTable([]string{"ID", "STATUS", "ATTEMPTS", "QUESTION", "UPDATED"}, rows))

		counts, err := store.CountTasksByStatus()
		if err != nil {
			return err
		}
		for _, status := range []string{storage.StatusPending, storage.StatusRunning, storage.StatusSuccess, storage.StatusFailure} {
			if n := counts[status]; n > 0 {
				printStatus(status, "%d", n)
			}
		}
		return nil
	},
}

func init() {
	tasksCmd.Flags().Int("limit", 20, "maximum number of tasks to list")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

// --- token ---

var tokenCmd = &cobra.Command{
	Use:   "token <username>",
	Short: "Mint a bearer token for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ttlStr, _ := cmd.Flags().GetString("ttl")

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		if ttlStr == "" {
			ttlStr = cfg.Auth.TokenTTL
		}
		ttl, err := time.ParseDuration(ttlStr)
		if err != nil {
			return fmt.Errorf("invalid ttl %q: %w", ttlStr, err)
		}

		token := auth.NewVerifier(cfg.Auth.TokenSecret).Mint(args[0], ttl)
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("ttl", "", "token lifetime (default: auth.token_ttl from config)")
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show askd system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	engine := inference.New(cfg.Engine.BaseURL)
	if engine.IsRunning(ctx) {
		printStatus("Engine", "running at %s", cfg.Engine.BaseURL)
	} else {
		printStatus("Engine", "not running")
	}
	printStatus("Model", "%s", cfg.Engine.Model)

	redisClient := newRedisClient(cfg.Redis)
	defer redisClient.Close()
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	err = redisClient.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		printStatus("Redis", "not reachable at %s", cfg.Redis.Addr)
	} else {
		printStatus("Redis", "running at %s", cfg.Redis.Addr)
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err == nil {
		defer store.Close()
		if counts, err := store.CountTasksByStatus(); err == nil {
			total := 0
			for _, n := range counts {
				total += n
			}
			printStatus("Tasks", "%d total (%d pending, %d running)",
				total, counts[storage.StatusPending], counts[storage.StatusRunning])
		}
	}

	printStatus("Guest cap", "%d questions/day", cfg.Limits.GuestDailyCap)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
