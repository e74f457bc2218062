package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/serendipitylabs/serendipity/internal/settings"
)

func resolverFromFlags() *settings.Resolver {
	path := settingsPath
	if path == "" {
		base := dataDir
		if base == "" {
			base = settings.DefaultBaseDir()
		}
		path = filepath.Join(base, "settings.yaml")
	}
	return settings.NewResolver(path)
}

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and edit settings",
	}
	cmd.AddCommand(settingsShowCmd(), settingsSetCmd(), settingsResetCmd())
	return cmd
}

func settingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, warnings := resolverFromFlags().Resolve()
			data, err := yaml.Marshal(eff)
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			for _, w := range warnings {
				fmt.Printf("warning: %s\n", w)
			}
			return nil
		},
	}
}

func settingsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set key=value [key=value...]",
		Short: "Update settings leaves, leaving siblings untouched",
		Long: `Keys use dotted paths into the settings document, values are parsed
as YAML scalars:

  serendipity settings set round_size=5
  serendipity settings set approaches.divergent.enabled=false`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			partial := map[string]any{}
			for _, arg := range args {
				key, raw, ok := strings.Cut(arg, "=")
				if !ok || key == "" {
					return fmt.Errorf("expected key=value, got %q", arg)
				}
				var value any
				if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
					value = raw
				}
				partial = settings.Merge(partial, nestedTree(key, value))
			}

			eff, err := resolverFromFlags().Update(partial)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(eff)
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	}
}

func settingsResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard the persisted settings document",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := resolverFromFlags().Reset(); err != nil {
				return err
			}
			fmt.Println("settings reset to defaults")
			return nil
		},
	}
}

// nestedTree turns a dotted path into the single-leaf tree it names.
func nestedTree(key string, value any) map[string]any {
	parts := strings.Split(key, ".")
	tree := map[string]any{parts[len(parts)-1]: value}
	for i := len(parts) - 2; i >= 0; i-- {
		tree = map[string]any{parts[i]: tree}
	}
	return tree
}
