package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/corvuslab/meshbus/internal/hub"
	"github.com/corvuslab/meshbus/internal/transport"
)

func callCommand() *cobra.Command {
	var addr, payloadJSON string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "call <path>",
		Short: "Send a request to a hub and print its response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			peer, err := transport.Dial(ctx, transport.DialConfig{Address: addr})
			if err != nil {
				return fmt.Errorf("dial %s: %w", addr, err)
			}
			defer peer.Close()

			req := hub.Request{Path: args[0], Metadata: hub.Metadata{}}
			if payloadJSON != "" {
				var v any
				if err := json.Unmarshal([]byte(payloadJSON), &v); err != nil {
					return fmt.Errorf("parse --payload: %w", err)
				}
				req.Payload = hub.Payload{TypeTag: "json", Value: v}
			}

			resp, err := peer.Call(ctx, req)
			if err != nil {
				return err
			}
			return printResult(cmd, map[string]any{
				"status":   resp.Status.String(),
				"metadata": resp.Metadata,
				"payload":  resp.Payload.Value,
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:9443", "hub transport address")
	cmd.Flags().StringVar(&payloadJSON, "payload", "", "JSON payload to send")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "call timeout")
	return cmd
}

// printResult writes v to cmd's stdout as JSON or YAML, per the root
// --output flag. The dashboard API itself only serves JSON; YAML output is
// a CLI-side re-encoding.
func printResult(cmd *cobra.Command, v any) error {
	format, _ := cmd.Flags().GetString("output")
	switch format {
	case "yaml":
		out, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal yaml: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	case "", "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported --output %q (supported: json, yaml)", format)
	}
}
