package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MangalKhundongbam/exe-semge/internal/logger"
)

var showCmd = &cobra.Command{
	Use:   "show [document-id]",
	Short: "Print a stored document",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().Int("page", 0, "Print only this page")
	showCmd.Flags().Bool("json", false, "Output as JSON")
}

func runShow(cmd *cobra.Command, args []string) error {
	log := logger.WithDocument("show", args[0])
	pageNum, _ := cmd.Flags().GetInt("page")
	jsonOutput, _ := cmd.Flags().GetBool("json")

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

	if pageNum == 0 {
		return outputDocument(cmd.OutOrStdout(), doc, "", jsonOutput, log)
	}

	page, ok := doc.Page(pageNum)
	if !ok {
		return fmt.Errorf("page %d not found; document has %d pages", pageNum, doc.PageCount)
	}
	if jsonOutput {
		return writeJSON(cmd, page)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "--- Page %d [%s] ---\n%s", page.Number, page.Status, page.Text)
	return nil
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to create JSON output: %w", err)
	}
	return nil
}
