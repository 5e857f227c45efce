package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

func listCommand() *cobra.Command {
	var addr string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the child hubs attached beneath a hub's dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			url := fmt.Sprintf("http://%s/api/v1/hub/children", addr)
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", url, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				return fmt.Errorf("dashboard returned %s: %s", resp.Status, body)
			}

			var children []map[string]string
			if err := json.NewDecoder(resp.Body).Decode(&children); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return printResult(cmd, children)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8090", "dashboard HTTP address")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	return cmd
}
