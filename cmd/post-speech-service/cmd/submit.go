package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/book-expert/post-speech-service/internal/api"
	"github.com/spf13/cobra"
)

const clientTimeout = 30 * time.Second

var errTextOrFile = errors.New("exactly one of --text or --file must be provided")

var (
	submitText  string
	submitFile  string
	submitVoice string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Create a post through the intake API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		body, err := submissionText(submitText, submitFile)
		if err != nil {
			return err
		}

		client := api.NewClient(apiURL, clientTimeout)

		post, err := client.CreatePost(contextOrBackground(cmd), body, submitVoice)
		if err != nil {
			return fmt.Errorf("failed to submit post: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", post.ID, post.Status)

		return nil
	},
}

func submissionText(text, file string) (string, error) {
	if (text == "") == (file == "") {
		return "", errTextOrFile
	}

	if text != "" {
		return text, nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("failed to read text file '%s': %w", file, err)
	}

	return string(data), nil
}

func init() {
	submitCmd.Flags().StringVar(&submitText, "text", "", "text to convert to speech")
	submitCmd.Flags().StringVar(&submitFile, "file", "", "file containing the text to convert")
	submitCmd.Flags().StringVar(&submitVoice, "voice", "", "synthesis voice (default: the service's default voice)")
	rootCmd.AddCommand(submitCmd)
}
