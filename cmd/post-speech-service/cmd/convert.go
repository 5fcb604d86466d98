package cmd

import (
	"fmt"

	"github.com/book-expert/post-speech-service/internal/core"
	"github.com/book-expert/post-speech-service/internal/service"
	"github.com/spf13/cobra"
)

var convertCmd = &cobra.Command{
	Use:   "convert <post-id>",
	Short: "Convert one stored post now and print its audio URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		defer closeLogger(log)

		svc, err := service.New(cfg, log)
		if err != nil {
			return fmt.Errorf("failed to initialize service: %w", err)
		}

		defer func() {
			_ = svc.Close()
		}()

		publicURL, err := svc.Converter.Convert(contextOrBackground(cmd), args[0])
		if err != nil {
			log.Error("Conversion of post %s failed (%s): %v", args[0], core.Kind(err), err)

			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), publicURL)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
}
