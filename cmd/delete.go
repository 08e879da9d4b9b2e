package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MangalKhundongbam/exe-semge/internal/logger"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [document-id]",
	Short: "Remove a stored document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	log := logger.WithDocument("delete", args[0])

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Delete(ctx, args[0]); err != nil {
		return handleExtractError(err, log)
	}

	log.Info().Msg("Document deleted")
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
	return nil
}
