package main

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/viant/sparsevec/vecutil"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validTable(name string) error {
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

func NewTextCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "text",
		Short: "Index and search text as GPT-3 token-count vectors",
		Long:  `Featurize text into sparse bag-of-tokens vectors and store them in a vec virtual table scoped to the configured dataset.`,
	}
	cmd.PersistentFlags().String("table", "texts", "vec virtual table name")
	cmd.AddCommand(newTextAddCmd(a), newTextSearchCmd(a), newTextRemoveCmd(a))
	return cmd
}

// textIndex creates the vec table when missing and binds an index to the
// configured dataset.
func (a *app) textIndex(cmd *cobra.Command) (*vecutil.Index, error) {
	if err := requireDataset(a); err != nil {
		return nil, err
	}
	table, _ := cmd.Flags().GetString("table")
	if err := validTable(table); err != nil {
		return nil, err
	}
	db, err := a.open()
	if err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf("CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec(doc_id, metric=%s)", table, a.metric())
	if _, err := db.ExecContext(cmd.Context(), stmt); err != nil {
		return nil, fmt.Errorf("create %s: %w", table, err)
	}
	return vecutil.NewIndex(db, table, a.cfg.Dataset, vecutil.TokenCounts, vecutil.WithLogger(a.logger))
}

func newTextAddCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <id> <text>...",
		Short: "Add or replace a text document",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, err := a.textIndex(cmd)
			if err != nil {
				return err
			}
			meta, _ := cmd.Flags().GetString("meta")
			doc := vecutil.Document{ID: args[0], Content: strings.Join(args[1:], " "), Meta: meta}
			if err := ix.UpsertDocumentsText(cmd.Context(), []vecutil.Document{doc}); err != nil {
				return fmt.Errorf("text add: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), doc.ID)
			return nil
		},
	}
	cmd.Flags().String("meta", "", "Document metadata")
	return cmd
}

func newTextSearchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Search text documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, _ := cmd.Flags().GetInt("number")
			if !cmd.Flags().Changed("number") {
				k = a.cfg.K
			}
			ix, err := a.textIndex(cmd)
			if err != nil {
				return err
			}
			matches, err := ix.QueryText(cmd.Context(), strings.Join(args, " "), k)
			if err != nil {
				return fmt.Errorf("text search: %w", err)
			}
			if asJSON(cmd) {
				out := make([]map[string]any, 0, len(matches))
				for _, m := range matches {
					out = append(out, map[string]any{"id": m.ID, "score": m.Score, "content": m.Content, "meta": m.Meta})
				}
				return outputJSON(cmd, out)
			}
			for _, m := range matches {
				fmt.Fprintf(cmd.OutOrStdout(), "%.4f  %s\n", m.Score, m.ID)
			}
			return nil
		},
	}
	cmd.Flags().IntP("number", "k", 10, "Maximum results")
	return cmd
}

func newTextRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>...",
		Short: "Remove text documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, err := a.textIndex(cmd)
			if err != nil {
				return err
			}
			return ix.DeleteDocuments(cmd.Context(), args)
		},
	}
}
