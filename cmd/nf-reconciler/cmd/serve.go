package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/nf-reconciler/internal/alert"
	"github.com/rezonia/nf-reconciler/internal/ingest"
	"github.com/rezonia/nf-reconciler/internal/pipeline"
	"github.com/rezonia/nf-reconciler/internal/server"
	"github.com/rezonia/nf-reconciler/internal/store/memory"
)

var (
	serverAddr   string
	serverDebug  bool
	readTimeout  time.Duration
	writeTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP API server for document ingestion and reconciliation.

The API provides endpoints for:
  - POST /api/v1/ingest/xml             - Ingest a fiscal XML
  - POST /api/v1/ingest/pdf             - Ingest a PDF attachment
  - POST /api/v1/ingest/feed            - Ingest a distribution feed batch
  - GET  /api/v1/documents              - List fiscal records
  - GET  /api/v1/documents/:id          - Get one record
  - POST /api/v1/documents/:id/process  - Run the reconciliation pipeline
  - POST /api/v1/documents/:id/cancel   - Cancel a record
  - POST /api/v1/parse                  - Parse without persisting
  - POST /api/v1/keys/validate          - Validate an access key
  - POST /api/v1/keys/decode            - Decode an access key
  - GET  /health                        - Health check

Examples:
  nf-reconciler serve
  nf-reconciler serve --address :9090 --debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverAddr, "address", "", "Server listen address (default from config)")
	serveCmd.Flags().BoolVar(&serverDebug, "debug", false, "Enable debug mode")
	serveCmd.Flags().DurationVar(&readTimeout, "read-timeout", 30*time.Second, "HTTP read timeout")
	serveCmd.Flags().DurationVar(&writeTimeout, "write-timeout", 5*time.Minute, "HTTP write timeout")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	st := memory.New()
	ingestor := ingest.NewIngestor(st.Records, log)
	processor := pipeline.NewProcessor(st, cfg, alert.NewLogNotifier(log), log)

	serverCfg := server.DefaultConfig(cfg)
	if serverAddr != "" {
		serverCfg.Address = serverAddr
	}
	serverCfg.ReadTimeout = readTimeout
	serverCfg.WriteTimeout = writeTimeout
	serverCfg.Debug = serverDebug

	srv := server.NewServer(serverCfg, st, ingestor, processor, log)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		fmt.Println("\nShutting down server...")
		os.Exit(0)
	}()

	fmt.Printf("Starting server on %s\n", serverCfg.Address)
	return srv.Run()
}
