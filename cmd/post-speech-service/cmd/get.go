package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/book-expert/post-speech-service/internal/api"
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get [post-id]",
	Short: "Show one post, or every post when no id is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := api.NewClient(apiURL, clientTimeout)
		ctx := contextOrBackground(cmd)

		var (
			result any
			err    error
		)

		if len(args) == 1 {
			result, err = client.GetPost(ctx, args[0])
		} else {
			result, err = client.ListPosts(ctx)
		}

		if err != nil {
			return err
		}

		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")

		return encoder.Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
