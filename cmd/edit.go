package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/MangalKhundongbam/exe-semge/internal/extract"
	"github.com/MangalKhundongbam/exe-semge/internal/logger"
)

var editCmd = &cobra.Command{
	Use:   "edit [document-id] [page]",
	Short: "Replace the text of one page",
	Long: `Replace the recognized text of a stored page with a corrected version.
The page is marked as edited; all other pages are left untouched.`,
	Example: `  semge edit 3f1c... 3 --text "corrected line"
  semge edit 3f1c... 3 --file page3.txt`,
	Args: cobra.ExactArgs(2),
	RunE: runEdit,
}

func init() {
	rootCmd.AddCommand(editCmd)

	editCmd.Flags().String("text", "", "Replacement text")
	editCmd.Flags().String("file", "", "Read replacement text from a file")
	editCmd.MarkFlagsMutuallyExclusive("text", "file")
	editCmd.MarkFlagsOneRequired("text", "file")
}

func runEdit(cmd *cobra.Command, args []string) error {
	log := logger.WithDocument("edit", args[0])

	page, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("page must be a number: %q", args[1])
	}

	text, _ := cmd.Flags().GetString("text")
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read text file: %w", err)
		}
		text = string(data)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	doc, err := s.Get(ctx, args[0])
	if err != nil {
		return handleExtractError(err, log)
	}

	edited, err := extract.EditPageText(doc, page, text)
	if err != nil {
		return handleExtractError(err, log)
	}
	if err := s.Save(ctx, edited); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}

	log.Info().Int("page", page).Msg("Page edited")
	fmt.Fprintf(cmd.OutOrStdout(), "Page %d of %s updated\n", page, edited.ID)
	return nil
}
