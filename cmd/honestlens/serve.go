package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"honestlens/app"
)

var servePort string

// serveCmd runs the HTTP API and Kafka consumer
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the verification API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if servePort != "" {
			cfg.Port = servePort
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Serve(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "listen port (default $PORT or 8080)")
}
