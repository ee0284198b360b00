package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/nagctl/internal/bridge"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve commands to a UI surface",
	Long: `Serves the command surface to a UI process.

By default requests are read as newline-delimited JSON from stdin and
responses written one per line to stdout:

  {"id":"1","command":"save-config","payload":{...}}
  {"id":"1","success":true,"data":{...}}

With --http the same commands are served at POST /v1/commands/{command}.`,
	RunE: runServe,
}

var (
	serveHTTP bool
	serveAddr string
)

func init() {
	serveCmd.Flags().BoolVar(&serveHTTP, "http", false, "Serve over HTTP instead of stdio")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP listen address (default from settings http_addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	// Cancelling stops the bridge and kills any worker still being supervised.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serveHTTP {
		addr := serveAddr
		if addr == "" {
			addr = a.settings.HTTPAddr
		}
		a.logger.Info("serving commands over http", zap.String("addr", addr))
		return bridge.NewHTTPServer(addr, a.dispatcher, a.logger).Start(ctx)
	}

	a.logger.Info("serving commands over stdio")
	return bridge.NewStdioServer(a.dispatcher, os.Stdin, os.Stdout, a.logger).Serve(ctx)
}
