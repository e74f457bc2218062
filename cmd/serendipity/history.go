package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/serendipitylabs/serendipity/internal/history"
	"github.com/serendipitylabs/serendipity/internal/settings"
)

func openHistoryFromFlags() (*history.Store, error) {
	base := dataDir
	if base == "" {
		base = settings.DefaultBaseDir()
	}
	return history.Open(filepath.Join(base, "history.db"))
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the durable discovery history",
	}
	cmd.AddCommand(historyListCmd(), historyClearCmd())
	return cmd
}

func historyListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print recently shown items, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistoryFromFlags()
			if err != nil {
				return err
			}
			defer store.Close()

			items, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Println("no history yet")
				return nil
			}
			for _, it := range items {
				rating := ""
				if it.Rating > 0 {
					rating = fmt.Sprintf(" [rated %d]", it.Rating)
				}
				fmt.Printf("%s  %s%s\n    %s\n", it.ShownAt.Format("2006-01-02 15:04"), it.Title, rating, it.URL)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum items to print")
	return cmd
}

func historyClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Wipe the durable history",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistoryFromFlags()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("history cleared")
			return nil
		},
	}
}
