package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/MangalKhundongbam/exe-semge/internal/config"
	"github.com/MangalKhundongbam/exe-semge/internal/logger"
	"github.com/MangalKhundongbam/exe-semge/internal/ocr"
	"github.com/MangalKhundongbam/exe-semge/internal/store"
)

var version = "1.0.0"

// appConfig is set by main; commands load it themselves when nil.
var appConfig *config.Config

var rootCmd = &cobra.Command{
	Use:   "semge",
	Short: "semge - hybrid OCR for mixed English and Meitei Mayek documents",
	Long: `semge extracts text from scanned documents that mix English with a
low-resource script such as Meitei Mayek.

Pages are binarized, split into lines with the English model, and every
line that does not read as English is re-recognized with the secondary
language. Extracted documents are kept in a local store where pages can
be reviewed, corrected, listed and searched.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI with cfg. A nil cfg makes each command load the
// configuration from the environment.
func Execute(cfg *config.Config) {
	log := logger.WithComponent("cmd")
	appConfig = cfg

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Version reports the CLI version.
func Version() string { return version }

func getConfig() (*config.Config, error) {
	if appConfig != nil {
		return appConfig, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	appConfig = cfg
	return cfg, nil
}

func openStore(ctx context.Context) (store.Store, error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, err
	}
	s, err := store.Open(ctx, cfg.GetStoreConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}
	return s, nil
}

func openEngine(ctx context.Context) (ocr.Engine, error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, err
	}
	engine, err := ocr.New(ctx, cfg.GetEngineConfig())
	if err != nil {
		return nil, handleExtractError(err, logger.WithComponent("engine"))
	}
	return engine, nil
}

// closeEngine releases engines that hold a client connection.
func closeEngine(engine ocr.Engine) {
	c, ok := engine.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		log := logger.WithComponent("engine")
		log.Debug().Err(err).Msg("Failed to close recognition engine")
	}
}
