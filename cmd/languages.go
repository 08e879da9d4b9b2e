package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MangalKhundongbam/exe-semge/internal/logger"
	"github.com/MangalKhundongbam/exe-semge/internal/ocr"
)

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List recognition languages installed in the engine",
	Args:  cobra.NoArgs,
	RunE:  runLanguages,
}

func init() {
	rootCmd.AddCommand(languagesCmd)

	languagesCmd.Flags().Bool("json", false, "Output as JSON")
}

func runLanguages(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("languages")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	engine, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer closeEngine(engine)

	// One process per command, so the catalog always queries the engine fresh
	langs, err := ocr.NewLanguageCatalog(engine, 0).Languages(ctx)
	if err != nil {
		return handleExtractError(err, log)
	}
	if len(langs) == 0 {
		return handleExtractError(ocr.ErrNoLanguageAvailable, log)
	}

	if jsonOutput {
		return writeJSON(cmd, langs)
	}
	for _, l := range langs {
		fmt.Fprintln(cmd.OutOrStdout(), l)
	}
	return nil
}
