package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/EndeeLabs/endee-web-ui/internal/config"
	"github.com/EndeeLabs/endee-web-ui/internal/endee"
	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
)

var (
	outputFormat string
	tokenFlag    string
	verbose      bool
)

// rootCmd serves the console when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "endee-console",
	Short: "Admin console for the Endee vector database",
	Long: `endee-console serves the browser console for an Endee (or Qdrant) vector
database and doubles as a command line client for the same operations.

Run without a subcommand to start the server.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the console HTTP and gRPC servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json or yaml")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "backend token, overriding the saved login")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd, loginCmd, logoutCmd)
	rootCmd.AddCommand(indexesCmd, searchCmd, backupsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return cfg, nil
}

// backendFactory builds backends for the configured database. Qdrant keeps
// its backup jobs and snapshot names in the console repository.
func backendFactory(cfg *config.Config, store qdrantState) vectorstore.Factory {
	if cfg.Backend == config.BackendQdrant {
		return vectorstore.NewQdrantFactory(vectorstore.QdrantConfig{
			GRPCAddr:        cfg.QdrantGRPCURL,
			RESTURL:         cfg.QdrantURL,
			APIKey:          cfg.QdrantAPIKey,
			SparseDimension: cfg.QdrantSparseDimension,
			Jobs:            store,
			Catalog:         store,
			Logger:          slog.Default(),
		})
	}
	return endee.NewFactory(cfg.EndeeURL, &http.Client{Timeout: cfg.EndeeTimeout})
}

type qdrantState interface {
	vectorstore.JobLog
	vectorstore.Catalog
}

// defaultToken is the token server-side probes and scheduled backups use.
func defaultToken(cfg *config.Config) string {
	if cfg.Backend == config.BackendQdrant {
		return cfg.QdrantAPIKey
	}
	return cfg.EndeeToken
}
