package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// globalOptions are flags shared by all commands.
type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	apiURL     string
	apiKey     string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "seriesgrab",
		Short:         "Download series and movies through a supervised aria2 daemon.",
		Long:          "seriesgrab runs a local download service (serve) and talks to it through its control API.",
		Version:       fmt.Sprintf("%s (built %s)", Version, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "path to YAML config file")
	pf.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.StringVar(&opts.logFormat, "log-format", "auto", "log format: auto, json, text")
	pf.StringVar(&opts.apiURL, "api", "", "control API base URL (default from config)")
	pf.StringVar(&opts.apiKey, "api-key", os.Getenv("API_KEY"), "control API key (default from config or API_KEY)")

	root.AddCommand(
		newServeCmd(opts),
		newDownloadCmd(opts),
		newListCmd(opts),
		newPauseCmd(opts),
		newResumeCmd(opts),
		newCancelCmd(opts),
		newConcurrencyCmd(opts),
		newNotificationsCmd(opts),
		newActionCmd(opts),
	)
	return root
}
