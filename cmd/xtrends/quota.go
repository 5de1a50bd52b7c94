package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var flagServer string

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show the upstream quota of a running server",
	RunE:  runQuota,
}

func init() {
	quotaCmd.Flags().StringVar(&flagServer, "server", "http://localhost:8080", "base URL of a running xtrends serve")
}

type healthQuota struct {
	Status string `json:"status"`
	Quota  struct {
		Remaining int       `json:"remaining"`
		Ceiling   int       `json:"ceiling"`
		ResetAt   time.Time `json:"reset_at"`
		Synced    bool      `json:"synced"`
	} `json:"quota"`
}

func runQuota(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(strings.TrimRight(flagServer, "/") + "/health")
	if err != nil {
		return fmt.Errorf("querying server: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server answered HTTP %d", resp.StatusCode)
	}

	var h healthQuota
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return fmt.Errorf("decoding health: %w", err)
	}
	q := h.Quota
	synced := "estimated"
	if q.Synced {
		synced = "from headers"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "remaining %d/%d (%s), resets %s (in %s)\n",
		q.Remaining, q.Ceiling, synced,
		q.ResetAt.Local().Format(time.DateTime),
		time.Until(q.ResetAt).Round(time.Second))
	return nil
}
