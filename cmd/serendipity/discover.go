package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/serendipitylabs/serendipity/internal/discovery"
)

func discoverCmd() *cobra.Command {
	var (
		count      int
		approaches []string
		steer      string
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Run one discovery round in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			svcCtx, logger, err := newServiceContext()
			if err != nil {
				return err
			}
			defer svcCtx.Close()
			defer logger.Sync()

			sess := svcCtx.Sessions.Create()
			events := svcCtx.Orchestrator.RunRound(cmd.Context(), sess, discovery.RoundRequest{
				Approaches: approaches,
				Count:      count,
				Directives: steer,
			})

			for ev := range events {
				switch ev.Type {
				case discovery.EventStatus:
					fmt.Printf("  %s\n", ev.Status.Message)
				case discovery.EventToolUse:
					if ev.ToolUse.Query != "" {
						fmt.Printf("  [%s] %s\n", ev.ToolUse.Tool, ev.ToolUse.Query)
					} else {
						fmt.Printf("  [%s]\n", ev.ToolUse.Tool)
					}
				case discovery.EventComplete:
					printBatch(ev.Complete)
				case discovery.EventError:
					return fmt.Errorf("round failed: %s", ev.Err.Error)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 0, "recommendations per round (default: from settings)")
	cmd.Flags().StringSliceVarP(&approaches, "approach", "a", nil, "approaches to use (default: all enabled)")
	cmd.Flags().StringVar(&steer, "steer", "", "free-text steering for this round")
	return cmd
}

func printBatch(c *discovery.CompletePayload) {
	if c.BatchTitle != "" {
		fmt.Printf("\n%s\n\n", c.BatchTitle)
	}
	for i, rec := range c.Recommendations {
		fmt.Printf("%2d. %s\n    %s\n", i+1, rec.Title, rec.URL)
		if rec.Reason != "" {
			fmt.Printf("    %s\n", rec.Reason)
		}
	}
	for _, p := range c.Pairings {
		fmt.Printf("\n[%s] %s", p.Type, p.Title)
		if p.Content != "" {
			fmt.Printf(": %s", p.Content)
		}
		if p.URL != "" {
			fmt.Printf(" (%s)", p.URL)
		}
		fmt.Println()
	}
}
