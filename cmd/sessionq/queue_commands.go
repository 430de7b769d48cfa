package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"sessionq/internal/api"
	"sessionq/internal/ipc"
)

func newQueueCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newSubmitCommand(ctx),
		newClaimCommand(ctx),
		newFinalizeCommand(ctx),
		newCountCommand(ctx),
		newListCommand(ctx),
	}
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var id, key, payload string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit an item (an existing id is overwritten in place)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("id") {
				id = uuid.NewString()
			}
			req := api.SubmitRequest{ID: id, Key: key, Payload: parsePayload(payload)}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SubmitItem(cmd.Context(), req)
				if err != nil {
					return err
				}
				out := struct {
					ID    string `json:"id"`
					Key   string `json:"key"`
					Count int    `json:"count"`
				}{req.ID, req.Key, resp.Count}
				return emit(cmd, ctx, out, func() error {
					fmt.Fprintf(cmd.OutOrStdout(), "Submitted item %s (key %s); %d pending\n", req.ID, req.Key, resp.Count)
					return nil
				})
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Item id (defaults to a random UUID)")
	cmd.Flags().StringVar(&key, "key", "", "Grouping key; items sharing a key never run concurrently")
	cmd.Flags().StringVar(&payload, "payload", "", "Opaque payload; JSON is stored as-is, anything else as a JSON string")
	return cmd
}

// parsePayload keeps valid JSON verbatim and encodes anything else as a string.
func parsePayload(value string) json.RawMessage {
	if value == "" {
		return nil
	}
	if json.Valid([]byte(value)) {
		return json.RawMessage(value)
	}
	encoded, _ := json.Marshal(value)
	return encoded
}

func newClaimCommand(ctx *commandContext) *cobra.Command {
	var consumer string

	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Claim the next item whose key is not in flight",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ClaimItem(cmd.Context(), consumer)
				if err != nil {
					return err
				}
				return emit(cmd, ctx, resp, func() error {
					out := cmd.OutOrStdout()
					if !resp.Found || resp.Item == nil {
						fmt.Fprintln(out, "No claimable item")
						return nil
					}
					fmt.Fprintf(out, "Claimed item %s (key %s) for %s\n", resp.Item.ID, resp.Item.Key, consumer)
					if len(resp.Item.Payload) > 0 {
						fmt.Fprintf(out, "Payload: %s\n", resp.Item.Payload)
					}
					return nil
				})
			})
		},
	}
	cmd.Flags().StringVar(&consumer, "consumer", "cli", "Consumer id recorded with the claim")
	return cmd
}

func newFinalizeCommand(ctx *commandContext) *cobra.Command {
	var consumer string

	cmd := &cobra.Command{
		Use:   "finalize <item-id>",
		Short: "Finalize an item and release its key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID := args[0]
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.FinalizeItem(cmd.Context(), consumer, itemID)
				if err != nil {
					return err
				}
				return emit(cmd, ctx, resp, func() error {
					fmt.Fprintf(cmd.OutOrStdout(), "Finalized item %s; %d pending\n", itemID, resp.Count)
					return nil
				})
			})
		},
	}
	cmd.Flags().StringVar(&consumer, "consumer", "cli", "Consumer id recorded with the finalize")
	return cmd
}

func newCountCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Show the number of pending items, in-flight included",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				count, err := client.Count(cmd.Context())
				if err != nil {
					return err
				}
				return emit(cmd, ctx, api.CountResponse{Count: count}, func() error {
					fmt.Fprintln(cmd.OutOrStdout(), count)
					return nil
				})
			})
		},
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending items in submission order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.List(cmd.Context())
				if err != nil {
					return err
				}
				return emit(cmd, ctx, resp, func() error {
					out := cmd.OutOrStdout()
					if len(resp.Items) == 0 {
						fmt.Fprintln(out, "Queue is empty")
						return nil
					}
					fmt.Fprint(out, renderTable(
						[]string{"ID", "Key", "State", "Consumer", "Submitted", "Claimed"},
						buildItemRows(resp.Items),
					))
					return nil
				})
			})
		},
	}
}

func buildItemRows(items []api.QueueItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		state := "pending"
		if item.InFlight {
			state = "in flight"
		}
		rows = append(rows, []string{
			item.ID,
			item.Key,
			state,
			dashIfEmpty(item.ConsumerID),
			dashIfEmpty(item.SubmittedAt),
			dashIfEmpty(item.ClaimedAt),
		})
	}
	return rows
}

func dashIfEmpty(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
