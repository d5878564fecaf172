package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/TuringFantasy/simple-dedupe/types"
)

var duplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "Print flagged duplicates as JSON",
	Long: `Print every flagged duplicate pair, or the verdict for one id, as JSON.
The match index is built first if nothing usable is persisted.

Examples:
  simple-dedupe duplicates
  simple-dedupe duplicates --id 42`,
	RunE: runDuplicates,
}

func init() {
	rootCmd.AddCommand(duplicatesCmd)

	duplicatesCmd.Flags().String("id", "", "Only print the verdict for this id")
}

func runDuplicates(cmd *cobra.Command, args []string) error {
	id := mustGetString(cmd, "id")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	table, err := a.cache.LoadOrBuild(cmd.Context())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if id != "" {
		return enc.Encode(a.resolver.Resolve(table, types.ID(id)))
	}
	return enc.Encode(a.resolver.ResolveAll(table))
}
