// Package main implements dscope, a CLI for the domainscope daemon.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	httpserver "github.com/fyrsmithlabs/domainscope/internal/http"
	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL of the domainscope daemon
	serverURL string
	timeout   time.Duration
	version   = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dscope",
	Short: "CLI for the domainscope daemon",
	Long: `dscope talks to a running domainscope daemon. It opens and inspects
telemetry sessions and asks the daemon how it would classify traffic.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9191", "domainscope server URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(classifyCmd)
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check domainscope server health",
	Long: `Check the health status of the domainscope daemon.

Examples:
  dscope health
  dscope health --server http://localhost:8080`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

func runHealth(cmd *cobra.Command, _ []string) error {
	var health httpserver.HealthResponse
	if err := call(cmd.Context(), http.MethodGet, "/health", nil, &health); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Server Status: %s\n", health.Status)
	fmt.Fprintf(out, "Live Sessions: %d\n", health.Sessions)
	fmt.Fprintf(out, "Server URL: %s\n", serverURL)
	return nil
}

// call sends body as JSON to path and decodes the response into out when
// out is non-nil. Statuses outside 2xx are returned as errors carrying the
// server's message.
func call(ctx context.Context, method, path string, body, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	url := serverURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("server returned status %d: %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
