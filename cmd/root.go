package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/TuringFantasy/simple-dedupe/config"
	"github.com/TuringFantasy/simple-dedupe/logging"
)

var (
	configPath string
	debugMode  bool
	logPath    string
)

var rootCmd = &cobra.Command{
	Use:   "simple-dedupe",
	Short: "Flag users whose identifying images are likely duplicates",
	Long: `simple-dedupe compares every user's identifying image against every other
one using local feature matching, caches the resulting match index, and
serves duplicate verdicts over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !debugMode {
			return nil
		}
		if err := logging.SetupLogger(logPath); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to setup logging: %v\n", err)
			return nil
		}
		fmt.Fprintf(os.Stderr, "Debug mode enabled. Logging to: %s\n", logPath)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseLogger()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Write detailed logs to the log file")
	rootCmd.PersistentFlags().StringVar(&logPath, "logfile", "simple-dedupe.log", "Log file used with --debug")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// loadConfig reads --config (or DEDUPE_CONFIG) plus environment overrides
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("DEDUPE_CONFIG")
	}
	return config.Load(path)
}
