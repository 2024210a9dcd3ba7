package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/viant/sparsevec/engine"
	idxapi "github.com/viant/sparsevec/index"
	"github.com/viant/sparsevec/internal/config"
	"github.com/viant/sparsevec/internal/logging"
	"github.com/viant/sparsevec/vec"
	"github.com/viant/sparsevec/vecadmin"
)

const defaultConfigPath = "sparsevec.yaml"

// app holds state shared by subcommands for a single invocation.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sql.DB
}

func NewRootCmd(version string) *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "sparsevec",
		Short:         "Sparse vector algebra and SQLite-backed similarity search",
		Long:          `Compute sparse vector arithmetic and similarity, and store, index and search sparse embeddings in SQLite.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	addPersistentFlags(rootCmd)
	rootCmd.AddCommand(
		NewSimCmd(),
		NewNearestCmd(),
		NewCombineCmd(),
		NewScaleCmd(),
		NewDivideCmd(),
		NewPutCmd(a),
		NewGetCmd(a),
		NewSearchCmd(a),
		NewRemoveCmd(a),
		NewTextCmd(a),
		NewReindexCmd(a),
		NewSyncCmd(a),
		NewConfigCmd(a),
	)
	return rootCmd
}

func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("config", defaultConfigPath, "Path to YAML config")
	cmd.PersistentFlags().String("db", "", "SQLite database path (overrides config)")
	cmd.PersistentFlags().String("dataset", "", "Dataset id (overrides config)")
	cmd.PersistentFlags().String("metric", "", "Metric: cosine|l2|dot|jaccard (overrides config)")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
}

func (a *app) init(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Database.Path = db
	}
	if ds, _ := cmd.Flags().GetString("dataset"); ds != "" {
		cfg.Dataset = ds
	}
	if m, _ := cmd.Flags().GetString("metric"); m != "" {
		cfg.Metric = m
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return err
	}
	a.cfg, a.logger = cfg, logger
	return nil
}

func (a *app) metric() idxapi.Metric {
	m, _ := idxapi.ParseMetric(a.cfg.Metric)
	return m
}

// open lazily opens the configured database with the SQL functions and the
// vec and vec_admin modules registered.
func (a *app) open() (*sql.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := engine.OpenFile(a.cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	// a MATCH query reads its shadow table on a second connection
	db.SetMaxOpenConns(2)
	if err := engine.RegisterVectorFunctions(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := vec.Register(db, vec.WithLogger(a.logger)); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := vecadmin.Register(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	a.logger.Debug("database opened", "path", a.cfg.Database.Path)
	a.db = db
	return db, nil
}

func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

func asJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func outputJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func requireDataset(a *app) error {
	if a.cfg.Dataset == "" {
		return fmt.Errorf("dataset is required (--dataset or config)")
	}
	return nil
}
