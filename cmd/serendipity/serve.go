package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/serendipitylabs/serendipity/internal/server"
)

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local discovery API",
		RunE: func(cmd *cobra.Command, args []string) error {
			svcCtx, logger, err := newServiceContext()
			if err != nil {
				return err
			}
			defer svcCtx.Close()
			defer logger.Sync()

			if port == 0 {
				eff, _ := svcCtx.Settings.Resolve()
				port = eff.Port
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				cancel()
			}()

			return server.Run(ctx, svcCtx, server.Options{Port: port, Quiet: !verbose})
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (default: from settings)")
	return cmd
}
