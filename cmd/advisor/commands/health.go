package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var healthServer string

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check a running advisor server",
	RunE:  runHealth,
}

func init() {
	healthCmd.Flags().StringVar(&healthServer, "server", "http://localhost:8080", "Advisor server URL")
}

func runHealth(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet,
		strings.TrimRight(healthServer, "/")+"/healthz", nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	var health struct {
		Status            string  `json:"status"`
		UptimeSeconds     int64   `json:"uptimeSeconds"`
		RequestsProcessed int64   `json:"requestsProcessed"`
		ErrorRate         float64 `json:"errorRate"`
	}
	if err := json.Unmarshal(data, &health); err != nil {
		return fmt.Errorf("unexpected response body: %w", err)
	}

	fmt.Printf("status:   %s\n", health.Status)
	fmt.Printf("uptime:   %s\n", time.Duration(health.UptimeSeconds)*time.Second)
	fmt.Printf("requests: %d\n", health.RequestsProcessed)
	fmt.Printf("errors:   %.1f%%\n", health.ErrorRate*100)
	return nil
}
