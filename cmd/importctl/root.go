package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"company-directory-backend/internal/config"
	"company-directory-backend/internal/logging"
	"company-directory-backend/internal/uploadflow"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	BaseURL    string
	LogLevel   string
	ResetDelay time.Duration
}

func newRootCmd() *cobra.Command {
	var opts globalOptions

	cmd := &cobra.Command{
		Use:           "importctl",
		Short:         "Validate and bulk-upload company registration files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.BaseURL, "base-url", envOr("IMPORTCTL_BASE_URL", "http://localhost:8080"), "server base URL")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level")
	cmd.PersistentFlags().DurationVar(&opts.ResetDelay, "reset-delay", defaultResetDelay(), "how long a finished upload stays on screen before the next file")

	cmd.AddCommand(newValidateCmd(&opts))
	cmd.AddCommand(newUploadCmd(&opts))
	cmd.AddCommand(newTemplateCmd(&opts))
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func (o *globalOptions) logger() *logrus.Logger {
	return logging.NewWithOutput(os.Stderr, o.LogLevel, "text")
}

func (o *globalOptions) session(log logrus.FieldLogger) *uploadflow.Session {
	return uploadflow.NewSession(o.client(log), o.ResetDelay, log)
}

// defaultResetDelay follows IMPORT_RESET_DELAY, falling back to its default when unset or invalid.
func defaultResetDelay() time.Duration {
	opts, err := config.LoadImport()
	if err != nil {
		return 3 * time.Second
	}
	return opts.ResetDelay
}

// client has no overall timeout: a bulk upload streams until the import ends.
func (o *globalOptions) client(log logrus.FieldLogger) *uploadflow.Client {
	hc := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: 10 * time.Minute,
		},
	}
	return uploadflow.NewClient(o.BaseURL, hc, log)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
