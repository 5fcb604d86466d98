// Package cmd implements the post-speech-service command tree.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/book-expert/logger"
	"github.com/book-expert/post-speech-service/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	bootstrapLogFile = "post-speech-service-bootstrap.log"
	serviceLogFile   = "post-speech-service.log"
	defaultAPIURL    = "http://localhost:8080"
)

var (
	cfgFile string
	envFile string
	apiURL  string
)

var rootCmd = &cobra.Command{
	Use:   "post-speech-service",
	Short: "Converts text posts into published speech audio",
	Long: `post-speech-service accepts text posts over HTTP, converts each post to
speech block by block through a synthesis provider, publishes the audio to a
NATS object store and records the public URL on the post.

Commands:
  serve    - intake API and conversion worker
  convert  - convert one stored post now
  submit   - create a post through the intake API
  get      - show one post, or all posts`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return loadEnvFile(envFile)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "TOML config file (default: located by the configurator)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with secrets such as the OpenAI key")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", defaultAPIURL, "base URL of the intake API for client commands")
}

// loadEnvFile loads path into the environment. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}

	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load env file '%s': %w", path, err)
	}

	return nil
}

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger in %s: %w", logPath, err)
	}

	return log, nil
}

// bootstrap loads the configuration with a temporary logger and returns the
// configuration together with the final logger. The caller closes the logger.
func bootstrap() (*config.Config, *logger.Logger, error) {
	bootstrapLog, err := setupLogger(os.TempDir(), bootstrapLogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return nil, nil, err
	}

	defer func() {
		_ = bootstrapLog.Close()
	}()

	bootstrapLog.Info("Bootstrap logger created.")

	cfg, err := loadConfig(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, serviceLogFile)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return nil, nil, fmt.Errorf("failed to create final logger: %w", err)
	}

	return cfg, finalLog, nil
}

func loadConfig(log *logger.Logger) (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFile(cfgFile)
	}

	return config.Load(log)
}

func closeLogger(log *logger.Logger) {
	closeErr := log.Close()
	if closeErr != nil {
		fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
	}
}

// contextOrBackground guards commands executed without a context.
func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}

	return context.Background()
}
