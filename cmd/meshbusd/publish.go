package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/corvuslab/meshbus/internal/hub"
	"github.com/corvuslab/meshbus/internal/transport"
)

func publishCommand() *cobra.Command {
	var addr, payloadJSON, senderID string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "publish <topic>",
		Short: "Publish a message to a hub, fire-and-forget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			peer, err := transport.Dial(ctx, transport.DialConfig{Address: addr})
			if err != nil {
				return fmt.Errorf("dial %s: %w", addr, err)
			}
			defer peer.Close()

			msg := hub.Message{
				Topic:     args[0],
				Metadata:  hub.Metadata{},
				SenderID:  senderID,
				Timestamp: time.Now().UnixMilli(),
			}
			if payloadJSON != "" {
				var v any
				if err := json.Unmarshal([]byte(payloadJSON), &v); err != nil {
					return fmt.Errorf("parse --payload: %w", err)
				}
				msg.Payload = hub.Payload{TypeTag: "json", Value: v}
			}

			if err := peer.PublishRemote(msg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "published")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:9443", "hub transport address")
	cmd.Flags().StringVar(&payloadJSON, "payload", "", "JSON payload to send")
	cmd.Flags().StringVar(&senderID, "sender", "meshbusd-cli", "sender id stamped on the message")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "dial timeout")
	return cmd
}
