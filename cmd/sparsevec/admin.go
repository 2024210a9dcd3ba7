package main

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/viant/sparsevec/engine"
	idxapi "github.com/viant/sparsevec/index"
	"github.com/viant/sparsevec/index/bruteforce"
	"github.com/viant/sparsevec/internal/config"
	"github.com/viant/sparsevec/vec"
	"github.com/viant/sparsevec/vecadmin"
	"github.com/viant/sparsevec/vecsync"
)

func NewReindexCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reindex <table>",
		Short: "Rebuild the persisted indexes of a vec table",
		Long: `Rebuild and persist the brute-force index of every dataset stored in the shadow table of a vec virtual table.

The index uses the metric the table was declared with (cosine unless its
USING vec(...) clause says otherwise). --metric applies only to shadow tables
without a vec declaration, and must agree with the declaration otherwise.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validTable(args[0]); err != nil {
				return err
			}
			name, _ := cmd.Flags().GetString("compression")
			c, err := bruteforce.ParseCompression(name)
			if err != nil {
				return err
			}
			db, err := a.open()
			if err != nil {
				return err
			}
			metric, err := a.reindexMetric(cmd, db, args[0])
			if err != nil {
				return err
			}
			n, err := vecadmin.Reindex(cmd.Context(), db, vec.ShadowName(args[0]), metric, bruteforce.WithCompression(c))
			if err != nil {
				return fmt.Errorf("reindex: %w", err)
			}
			if asJSON(cmd) {
				return outputJSON(cmd, map[string]any{"table": args[0], "reindexed": n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reindexed:%d\n", n)
			return nil
		},
	}
	cmd.Flags().String("compression", "zstd", "Index compression: zstd|lz4|none")
	return cmd
}

// reindexMetric resolves the metric a reindex of table must build with. A
// persisted index whose metric differs from the declared one is never loaded.
func (a *app) reindexMetric(cmd *cobra.Command, db *sql.DB, table string) (idxapi.Metric, error) {
	declared, ok, err := vec.DeclaredMetric(cmd.Context(), db, table)
	if err != nil {
		return 0, err
	}
	if !ok {
		return a.metric(), nil
	}
	if f := cmd.Flag("metric"); f != nil && f.Changed && a.metric() != declared {
		return 0, fmt.Errorf("reindex: table %s is declared with metric %s, not %s", table, declared, a.metric())
	}
	a.logger.Debug("reindex: using declared metric", "table", table, "metric", declared.String())
	return declared, nil
}

func NewSyncCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Replicate vec shadow tables between databases",
	}
	cmd.AddCommand(newSyncEnableCmd(a), newSyncPullCmd(a))
	return cmd
}

func newSyncEnableCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "enable <table>",
		Short: "Record shadow table changes in the change log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validTable(args[0]); err != nil {
				return err
			}
			db, err := a.open()
			if err != nil {
				return err
			}
			return vecsync.EnableChangeLog(cmd.Context(), db, vec.ShadowName(args[0]))
		},
	}
}

func newSyncPullCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pull <upstream-db> <table>",
		Short: "Apply upstream changes of the configured dataset to this database",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDataset(a); err != nil {
				return err
			}
			if err := validTable(args[1]); err != nil {
				return err
			}
			upstream, err := engine.OpenFile(args[0])
			if err != nil {
				return err
			}
			defer upstream.Close()
			replica, err := a.open()
			if err != nil {
				return err
			}
			batch, _ := cmd.Flags().GetInt("batch")
			s, err := vecsync.NewSyncer(upstream, replica, vecsync.Config{
				DatasetID:   a.cfg.Dataset,
				ShadowTable: vec.ShadowName(args[1]),
				BatchSize:   batch,
			}, vecsync.WithLogger(a.logger))
			if err != nil {
				return err
			}
			if every, _ := cmd.Flags().GetDuration("watch"); every > 0 {
				return s.Run(cmd.Context(), every)
			}
			n, err := s.Sync(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON(cmd) {
				return outputJSON(cmd, map[string]any{"applied": n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied:%d\n", n)
			return nil
		},
	}
	cmd.Flags().Int("batch", 0, "Log entries per batch (default 256)")
	cmd.Flags().Duration("watch", time.Duration(0), "Keep syncing at this interval")
	return cmd
}

func NewConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or write the configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(a.cfg)
		},
	}, &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the --config path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			if err := config.Save(path, a.cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})
	return cmd
}
