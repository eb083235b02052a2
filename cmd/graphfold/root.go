package graphfold

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/graphfold/graphfold"
	"github.com/graphfold/graphfold/pkg/config"
	"github.com/graphfold/graphfold/pkg/logger"
)

// Version is stamped at build time through -ldflags.
var Version = "dev"

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "graphfold",
		Short: "Graphfold: entity resolution for extraction pipelines",
		Long: `Graphfold folds AI-extracted entities and relationships into a graph
database without creating duplicates. Incoming entities are matched against
existing nodes, merged or created automatically when the score is clear,
and held in a review queue for a human when it is not.`,
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initConfig()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./graphfold.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig resolves configuration sources: an optional local .env, then
// the config file, then environment variables.
func initConfig() {
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(".")
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName("graphfold")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// openClient loads configuration, applies any command-level overrides, and
// builds a client from it.
func openClient(mutate ...func(*config.Config)) (*graphfold.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	for _, m := range mutate {
		m(cfg)
	}
	client, err := graphfold.Open(cfg, logger.New(cfg.Log.Level, cfg.Log.Format))
	if err != nil {
		return nil, err
	}
	return client, nil
}
