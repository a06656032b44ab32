package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"SASVerify/internal/api"
	"SASVerify/internal/logger"
	"SASVerify/internal/verify"
)

// newServeCmd builds the serve command.
func newServeCmd(a *app) *cobra.Command {
	var addr, http3Addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve verification and derivation over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.API.Addr = addr
			}
			if cmd.Flags().Changed("http3") {
				a.cfg.API.HTTP3Addr = http3Addr
			}

			src, err := openLedger(a.cfg)
			if err != nil {
				return err
			}
			defer src.Close()

			opts, err := a.cfg.verifyOptions(src.acc)
			if err != nil {
				return err
			}

			server := api.New(api.Config{
				Addr:      a.cfg.API.Addr,
				HTTP3Addr: a.cfg.API.HTTP3Addr,
			}, src.acc, verify.New(src.acc, opts))

			if err := server.Start(); err != nil {
				return err
			}

			logger.Info("verifier ready",
				"ledger", src.kind,
				"http", server.Addr(),
				"http3", a.cfg.API.HTTP3Addr,
				"clock", a.cfg.Verify.Clock,
			)

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			logger.Info("shutting down")
			return server.Stop()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")
	cmd.Flags().StringVar(&http3Addr, "http3", "", "HTTP/3 (QUIC) listen address, disabled when empty")

	return cmd
}
