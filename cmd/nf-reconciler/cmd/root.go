package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rezonia/nf-reconciler/internal/config"
)

var (
	version = "1.0.0"

	// Global flags
	verbose      bool
	outputFormat string
	configPath   string
)

var rootCmd = &cobra.Command{
	Use:   "nf-reconciler",
	Short: "Ingest and reconcile Brazilian fiscal documents",
	Long: `nf-reconciler normalizes Brazilian electronic fiscal documents
(NF-e, NFC-e, CT-e, NFS-e) and foreign vendor invoices and reconciles
them against purchasing records.

Examples:
  # Parse fiscal XMLs
  nf-reconciler parse nota.xml danfe.pdf

  # Decode and validate an access key
  nf-reconciler key 35260111222333000181550010000123451123456785

  # Start the HTTP API
  nf-reconciler serve --address :8080`,
	Version: version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "json", "Output format (json, table)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (env: NF_RECONCILER_CONFIG)")

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	if configPath == "" {
		configPath = os.Getenv("NF_RECONCILER_CONFIG")
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	if verbose {
		level = zapcore.DebugLevel
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Logger.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
