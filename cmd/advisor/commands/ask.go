package commands

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/advisor-ai/advisor/pkg/types"
)

var (
	askServer  string
	askSession string
	askStream  bool
	askJSON    bool
	askTimeout time.Duration
)

var askCmd = &cobra.Command{
	Use:   "ask [question...]",
	Short: "Send a question to a running advisor server",
	Long: `Send one question to a running advisor server and print the answer.

Examples:
  advisor ask "What is diversification?"
  advisor ask --stream "Explain compound interest"
  advisor ask --session 01J... "And how does it relate to risk?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askServer, "server", "http://localhost:8080", "Advisor server URL")
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "Session ID (new session when omitted)")
	askCmd.Flags().BoolVar(&askStream, "stream", false, "Stream the answer as it is generated")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the full response as JSON")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 2*time.Minute, "Request timeout")
}

func runAsk(cmd *cobra.Command, args []string) error {
	message := strings.Join(args, " ")
	sessionID := askSession
	if sessionID == "" {
		sessionID = ulid.Make().String()
	}

	body, err := json.Marshal(map[string]any{
		"sessionId": sessionID,
		"message":   message,
		"stream":    askStream,
	})
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: askTimeout}
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost,
		strings.TrimRight(askServer, "/")+"/chat", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if askStream {
		return printStreamed(resp)
	}
	return printComplete(resp, sessionID)
}

func printComplete(resp *http.Response, sessionID string) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	var answer types.Response
	if err := json.Unmarshal(data, &answer); err != nil {
		return fmt.Errorf("unexpected response body: %w", err)
	}

	if askJSON {
		out, _ := json.MarshalIndent(answer, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	fmt.Println(answer.Text)
	if askSession == "" {
		fmt.Fprintf(os.Stderr, "\nsession: %s (pass --session to continue)\n", sessionID)
	}
	return nil
}

// printStreamed consumes the chat SSE stream: chunk events print as they
// arrive, done carries the terminal response, error carries a taxonomy code.
func printStreamed(resp *http.Response) error {
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	var eventType string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data := strings.TrimPrefix(line, "data: ")
			switch eventType {
			case "chunk":
				var chunk struct {
					Delta string `json:"delta"`
				}
				if json.Unmarshal([]byte(data), &chunk) == nil {
					fmt.Print(chunk.Delta)
				}
			case "done":
				fmt.Println()
				var answer types.Response
				if json.Unmarshal([]byte(data), &answer) == nil {
					if answer.Blocked {
						fmt.Println(answer.Text)
					}
					if answer.Reason != types.ReasonStop {
						fmt.Fprintf(os.Stderr, "completion reason: %s\n", answer.Reason)
					}
				}
				return nil
			case "error":
				fmt.Println()
				var detail struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				}
				if json.Unmarshal([]byte(data), &detail) == nil {
					return fmt.Errorf("%s: %s", detail.Code, detail.Message)
				}
				return fmt.Errorf("server error: %s", data)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream interrupted: %w", err)
	}
	return fmt.Errorf("stream ended without a terminal event")
}
