// Command queued is the CLI for the queued job queue: enqueue jobs,
// inspect the queue, run workers, and manage the dead-letter queue.
//
// Configuration is resolved from flags, then QUEUED_* environment
// variables, then an optional config file (--config, or .queued.yaml in
// the working directory or home directory).
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "queued",
	Short: "A durable background job queue for shell commands",
	Long: `queued persists shell commands as jobs in a pluggable store and executes
them with a pool of concurrent workers. Failed commands are retried up to
a per-job budget, then moved to the dead-letter queue for inspection and
replay.

Store backends:
  memory     volatile, single process (testing)
  file       single JSON file (default)
  sqlite     SQLite database file
  postgres   PostgreSQL via --dsn
  redis      Redis via --redis-addr

Common workflows:

  Enqueue a job:
    queued enqueue backup-2318 "pg_dump mydb > /backups/mydb.sql" --max-retries 5

  Run workers until interrupted:
    queued worker --count 8 --interval 2s

  Inspect the queue:
    queued list --state pending
    queued status

  Replay a dead job:
    queued dlq requeue backup-2318`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "queued: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default .queued.yaml)")
	pf.String("store", "file", "store backend: memory|file|sqlite|postgres|redis")
	pf.String("path", "queued.json", "data file for the file and sqlite backends")
	pf.String("dsn", "", "PostgreSQL connection string")
	pf.String("redis-addr", "localhost:6379", "Redis address")
	pf.String("log-level", "info", "log level: debug|info|warn|error")

	for _, key := range []string{"store", "path", "dsn", "redis-addr", "log-level"} {
		if err := viper.BindPFlag(key, pf.Lookup(key)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(
		newEnqueueCmd(),
		newListCmd(),
		newStatusCmd(),
		newDeleteCmd(),
		newWorkerCmd(),
		newDLQCmd(),
	)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".queued")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("QUEUED")
	viper.AutomaticEnv()

	// The config file is optional; only a parse failure is worth noise.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "queued: config: %v\n", err)
		}
	}
}
