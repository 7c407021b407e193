package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/0xkonsti/chatd/internal/cli/output"
	"github.com/0xkonsti/chatd/pkg/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show status of the running server",
	Long: `Query the management API of a running chatd server and print a
status summary: state, uptime, active sessions and online users.

The API must be enabled in the server configuration.`,
	RunE: runStatus,
}

// statusResponse mirrors the management API /status payload.
type statusResponse struct {
	Status string `json:"status"`
	Data   struct {
		State          string   `json:"state"`
		UptimeSeconds  int64    `json:"uptime_seconds"`
		ActiveSessions int32    `json:"active_sessions"`
		OnlineUsers    []string `json:"online_users"`
		OnlineCount    int      `json:"online_count"`
	} `json:"data"`
	Error string `json:"error"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if !cfg.API.Enabled {
		return fmt.Errorf("management API is disabled in the configuration")
	}

	client := &http.Client{Timeout: 5 * time.Second}
	url := fmt.Sprintf("http://localhost:%d/status", cfg.API.Port)

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("server not reachable at %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode status response: %w", err)
	}
	if status.Error != "" {
		return fmt.Errorf("server reported: %s", status.Error)
	}

	uptime := (time.Duration(status.Data.UptimeSeconds) * time.Second).String()
	output.KeyValueTable(os.Stdout, [][2]string{
		{"State", status.Data.State},
		{"Uptime", uptime},
		{"Active sessions", fmt.Sprintf("%d", status.Data.ActiveSessions)},
		{"Online users", fmt.Sprintf("%d", status.Data.OnlineCount)},
	})

	if len(status.Data.OnlineUsers) > 0 {
		fmt.Printf("\n%s\n", strings.Join(status.Data.OnlineUsers, ", "))
	}
	return nil
}
