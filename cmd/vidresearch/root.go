package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"vidresearch/internal/config"
)

var (
	configFile string
	envFile    string
	logLevel   string

	v   *viper.Viper
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "vidresearch",
	Short: "Research a video over a WebSocket session",
	Long: `vidresearch uploads a video to a research server, streams its progress log,
shows the markdown report it produces and lets you ask follow-up questions.
It also ships a development server speaking the same protocol.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "YAML config file")
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file loaded into the environment")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// flagKeys maps command flags onto config keys so that flags win over the
// file and the environment.
var flagKeys = map[string]string{
	"url":           "client.url",
	"plain":         "client.plain",
	"save-report":   "client.save_report",
	"watch-dir":     "client.watch_dir",
	"max-upload-mb": "client.max_upload_mb",
	"metrics-addr":  "client.metrics_addr",
	"addr":          "server.addr",
	"upload-dir":    "server.upload_dir",
	"static-dir":    "server.static_dir",
	"analyzer":      "server.analyzer",
	"responder":     "server.responder",
	"step-delay":    "server.step_delay",
	"log-level":     "logging.level",
	"log-file":      "logging.file",
}

func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	v, err = config.New(envFile, configFile)
	if err != nil {
		return err
	}

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = fmt.Errorf("bind --%s: %w", f.Name, err)
		}
	})
	if bindErr != nil {
		return bindErr
	}

	cfg, err = config.Load(v)
	return err
}
