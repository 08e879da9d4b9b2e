package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Find pages containing text (case-insensitive)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().Bool("json", false, "Output as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	query := strings.Join(args, " ")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	matches, err := s.Search(ctx, query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if jsonOutput {
		return writeJSON(cmd, matches)
	}

	out := cmd.OutOrStdout()
	if len(matches) == 0 {
		fmt.Fprintf(out, "No pages contain %q\n", query)
		return nil
	}
	for _, m := range matches {
		pages := make([]string, 0, len(m.Pages))
		for _, p := range m.Pages {
			pages = append(pages, fmt.Sprint(p.Number))
		}
		fmt.Fprintf(out, "%s  %s  pages %s\n", m.ID, m.SourceFile, strings.Join(pages, ", "))
	}
	return nil
}
