package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TuringFantasy/simple-dedupe/database"
	"github.com/TuringFantasy/simple-dedupe/directory"
	"github.com/TuringFantasy/simple-dedupe/imageprocessor"
	"github.com/TuringFantasy/simple-dedupe/types"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load the image directory into the SQLite images table",
	Long: `Copy every {id, path} entry of the JSON image directory (data.images) into
the SQLite database (data.database), for use with data.image_source: sqlite.
Existing ids keep their position and get the new path.

With --folder, image files found under the folder are imported instead, each
using its file name without extension as the id.

Examples:
  simple-dedupe import --from ./images.json
  simple-dedupe import --folder /srv/user-photos`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().String("from", "", "Image directory JSON file (defaults to data.images)")
	importCmd.Flags().String("folder", "", "Scan this folder for image files instead of reading JSON")
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	entries, err := importEntries(cmd, cfg.Data.Images)
	if err != nil {
		return err
	}

	db, err := initDatabaseWithRetry(cfg.Data.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.NewImageRepository(db).ImportImages(cmd.Context(), entries); err != nil {
		return err
	}

	stats, err := database.GetStats(db)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d images into %s (%d total)\n", len(entries), cfg.Data.Database, stats.TotalImages)
	return nil
}

func importEntries(cmd *cobra.Command, defaultFrom string) ([]types.ImageEntry, error) {
	if folder := mustGetString(cmd, "folder"); folder != "" {
		return directory.ScanFolder(folder, imageprocessor.NewImageLoaderRegistry().CanLoadFile)
	}

	from := mustGetString(cmd, "from")
	if from == "" {
		from = defaultFrom
	}
	if from == "" {
		return nil, errors.New("no image directory given (use --from, --folder or data.images)")
	}
	return directory.NewImageStore(from).ListImages(cmd.Context())
}
