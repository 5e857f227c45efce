package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

// monitorEvent mirrors internal/dashboard.Event's wire shape without
// importing the dashboard package, since the CLI only ever sees it as JSON
// off the wire.
type monitorEvent struct {
	Type      string            `json:"type"`
	Path      string            `json:"path"`
	Status    string            `json:"status"`
	HubID     string            `json:"hub_id"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp string            `json:"timestamp"`
}

func monitorCommand() *cobra.Command {
	var addr, pattern string

	cmd := &cobra.Command{
		Use:   "monitor [pattern]",
		Short: "Stream live resolution and publish events from a hub's dashboard",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				pattern = args[0]
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			url := fmt.Sprintf("ws://%s/ws/monitor", addr)
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
			if err != nil {
				return fmt.Errorf("dial %s: %w", url, err)
			}
			defer conn.Close()

			go func() {
				<-ctx.Done()
				conn.Close()
			}()

			out := cmd.OutOrStdout()
			for {
				var ev monitorEvent
				if err := conn.ReadJSON(&ev); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}
				if pattern != "" {
					if ok, _ := filepath.Match(pattern, ev.Path); !ok {
						continue
					}
				}
				line, _ := json.Marshal(ev)
				fmt.Fprintln(out, string(line))
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8090", "dashboard HTTP address")
	return cmd
}
