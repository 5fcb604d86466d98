package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/book-expert/post-speech-service/internal/service"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the intake API and the conversion worker",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		defer closeLogger(log)

		svc, err := service.New(cfg, log)
		if err != nil {
			log.Error("Failed to initialize service: %v", err)

			return fmt.Errorf("failed to initialize service: %w", err)
		}

		defer func() {
			closeErr := svc.Close()
			if closeErr != nil {
				log.Warn("Failed to close service: %v", closeErr)
			}
		}()

		ctx, stop := signal.NotifyContext(contextOrBackground(cmd), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		runErr := svc.Run(ctx)
		if runErr != nil && ctx.Err() == nil {
			return runErr
		}

		log.System("Post-speech service stopped.")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
