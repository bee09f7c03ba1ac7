package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/EndeeLabs/endee-web-ui/internal/adapter"
	"github.com/EndeeLabs/endee-web-ui/internal/forms"
	"github.com/EndeeLabs/endee-web-ui/internal/repository"
	"github.com/EndeeLabs/endee-web-ui/internal/repository/factory"
	"github.com/EndeeLabs/endee-web-ui/internal/session"
	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
)

// cliScope is the preference scope holding the CLI login
const cliScope = "cli"

const requestTimeout = 2 * time.Minute

// client is a backend adapter opened for one CLI invocation.
type client struct {
	*adapter.Adapter
	store repository.Store
}

func (c *client) Close() {
	c.Adapter.Close()
	c.store.Close()
}

func openStore(ctx context.Context) (repository.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := factory.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	return store, nil
}

// openClient resolves the token from --token, then the saved login, then the
// environment.
func openClient(ctx context.Context) (*client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := factory.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	token := tokenFlag
	if token == "" {
		saved, err := store.GetPreference(ctx, cliScope, session.KeyAuthToken)
		switch {
		case err == nil:
			token = saved
		case !errors.Is(err, repository.ErrNotFound):
			store.Close()
			return nil, fmt.Errorf("failed to read saved login: %w", err)
		}
	}
	if token == "" {
		token = defaultToken(cfg)
	}

	backend, err := backendFactory(cfg, store)(token)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to build backend: %w", err)
	}
	return &client{Adapter: adapter.New(backend), store: store}, nil
}

// withClient runs fn with a client and a bounded context.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *client) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	c, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(ctx, c)
}

// render writes v as json or yaml, or calls table for the default format.
func render(w io.Writer, v any, table func(tw *tabwriter.Writer)) error {
	switch strings.ToLower(outputFormat) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		// through JSON so field names follow the json tags
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		return enc.Close()
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q", outputFormat)
	}
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the backend is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client) error {
			if _, err := c.Health(ctx).Unwrap(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		})
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <token>",
	Short: "Save a backend token for later commands",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token := strings.TrimSpace(args[0])
		if token == "" {
			return errors.New("token is empty")
		}
		tokenFlag = token

		return withClient(cmd, func(ctx context.Context, c *client) error {
			// any authenticated call proves the token
			if _, err := c.ListIndexes(ctx).Unwrap(); err != nil {
				return fmt.Errorf("token rejected: %w", err)
			}
			if err := c.store.SetPreference(ctx, cliScope, session.KeyAuthToken, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Token saved")
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved backend token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.DeletePreference(cmd.Context(), cliScope, session.KeyAuthToken); err != nil {
			return fmt.Errorf("failed to forget token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Token removed")
		return nil
	},
}

var indexesCmd = &cobra.Command{
	Use:     "indexes",
	Aliases: []string{"index"},
	Short:   "Inspect indexes",
}

var indexesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client) error {
			indexes, err := c.ListIndexes(ctx).Unwrap()
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), indexes, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "NAME\tDIMENSION\tSPACE\tPRECISION\tVECTORS")
				for _, idx := range indexes {
					fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%d\n",
						idx.Name, idx.Dimension, adapter.SpaceTypeLabel(idx.SpaceType), idx.Precision, idx.ElementCount)
				}
			})
		})
	},
}

var indexesGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Show one index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client) error {
			idx, err := c.GetIndex(ctx, args[0]).Unwrap()
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), idx, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "Name\t%s\n", idx.Name)
				fmt.Fprintf(tw, "Dimension\t%d\n", idx.Dimension)
				if idx.Hybrid() {
					fmt.Fprintf(tw, "Sparse dimension\t%d\n", idx.SparseDimension)
				}
				fmt.Fprintf(tw, "Space\t%s\n", adapter.SpaceTypeLabel(idx.SpaceType))
				fmt.Fprintf(tw, "Precision\t%s\n", idx.Precision)
				fmt.Fprintf(tw, "M\t%d\n", idx.M)
				fmt.Fprintf(tw, "ef_construction\t%d\n", idx.EfConstruction)
				fmt.Fprintf(tw, "Vectors\t%d\n", idx.ElementCount)
				if !idx.CreatedAt.IsZero() {
					fmt.Fprintf(tw, "Created\t%s\n", idx.CreatedAt.Format(time.RFC3339))
				}
			})
		})
	},
}

var searchForm forms.SearchForm

var searchCmd = &cobra.Command{
	Use:   "search <index>",
	Short: "Run a similarity search",
	Example: `  endee-console search docs --vector "[0.1, 0.2, 0.3, 0.4]" -k 5
  endee-console search docs --vector "[0.1, 0.2]" --filter '{"lang": {"$eq": "en"}}' -o json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client) error {
			index := args[0]
			info, err := c.GetIndex(ctx, index).Unwrap()
			if err != nil {
				return err
			}
			q, err := searchForm.Parse(info)
			if err != nil {
				return err
			}
			results, err := c.Search(ctx, index, q).Unwrap()
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), results, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "ID\tSIMILARITY\tDISTANCE\tMETA")
				for _, r := range results {
					fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%s\n", r.ID, r.Similarity, r.Distance, compactJSON(r.Meta))
				}
			})
		})
	},
}

var backupsCmd = &cobra.Command{
	Use:     "backups",
	Aliases: []string{"backup"},
	Short:   "Manage backups",
}

var backupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client) error {
			names, err := c.ListBackups(ctx).Unwrap()
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), names, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "NAME")
				for _, n := range names {
					fmt.Fprintln(tw, n)
				}
			})
		})
	},
}

var backupsJobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List backup jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client) error {
			jobs, err := c.ListBackupJobs(ctx).Unwrap()
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), jobs, func(tw *tabwriter.Writer) {
				writeJobs(tw, jobs...)
			})
		})
	},
}

var backupsCreateCmd = &cobra.Command{
	Use:   "create <index> <name>",
	Short: "Queue a backup of an index",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := forms.ParseBackupName(args[1])
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client) error {
			job, err := c.CreateBackup(ctx, args[0], name).Unwrap()
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), job, func(tw *tabwriter.Writer) {
				writeJobs(tw, *job)
			})
		})
	},
}

func writeJobs(tw *tabwriter.Writer, jobs ...vectorstore.BackupJob) {
	fmt.Fprintln(tw, "JOB\tINDEX\tBACKUP\tSTATUS\tSTARTED\tERROR")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			j.ID, j.IndexID, j.BackupName, j.Status, j.StartedAt.Local().Format(time.DateTime), j.Error)
	}
}

func compactJSON(meta map[string]any) string {
	if len(meta) == 0 {
		return ""
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Sprint(meta)
	}
	return string(data)
}

func init() {
	indexesCmd.AddCommand(indexesListCmd, indexesGetCmd)
	backupsCmd.AddCommand(backupsListCmd, backupsJobsCmd, backupsCreateCmd)

	f := searchCmd.Flags()
	f.StringVar(&searchForm.Vector, "vector", "", "dense query vector as a JSON array")
	f.StringVar(&searchForm.SparseIndices, "sparse-indices", "", "sparse indices as a JSON array")
	f.StringVar(&searchForm.SparseValues, "sparse-values", "", "sparse values as a JSON array")
	f.StringVarP(&searchForm.K, "k", "k", "10", "number of results")
	f.StringVar(&searchForm.Ef, "ef", "", "search-time ef")
	f.StringVar(&searchForm.Filter, "filter", "", "metadata filter as JSON")
	f.BoolVar(&searchForm.IncludeVectors, "include-vectors", false, "return stored vectors")
}
