// main package for the post-speech-service
package main

import (
	"fmt"
	"os"

	"github.com/book-expert/post-speech-service/cmd/post-speech-service/cmd"
)

func main() {
	err := cmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
