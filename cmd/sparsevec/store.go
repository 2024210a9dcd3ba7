package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/viant/sparsevec/vector"
)

func (a *app) store() (*vector.SQLiteStore, error) {
	db, err := a.open()
	if err != nil {
		return nil, err
	}
	return vector.NewSQLiteStore(db, vector.WithLogger(a.logger))
}

func NewPutCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <id> <vector>",
		Short: "Store a document embedding",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			emb, err := vector.ParseText(args[1])
			if err != nil {
				return err
			}
			content, _ := cmd.Flags().GetString("content")
			meta, _ := cmd.Flags().GetString("meta")
			s, err := a.store()
			if err != nil {
				return err
			}
			ids, err := s.AddDocuments(cmd.Context(), []vector.Document{{ID: args[0], Content: content, Metadata: meta, Embedding: emb}})
			if err != nil {
				return fmt.Errorf("put: %w", err)
			}
			if asJSON(cmd) {
				return outputJSON(cmd, map[string]any{"id": ids[0]})
			}
			fmt.Fprintln(cmd.OutOrStdout(), ids[0])
			return nil
		},
	}
	cmd.Flags().StringP("content", "c", "", "Document content")
	cmd.Flags().String("meta", "", "Document metadata")
	return cmd
}

func NewGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a stored document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.store()
			if err != nil {
				return err
			}
			doc, err := s.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON(cmd) {
				return outputJSON(cmd, documentJSON(doc, nil))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", doc.ID, vector.FormatText(doc.Embedding), doc.Content)
			return nil
		},
	}
}

func NewSearchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <vector>",
		Short: "Find the stored documents closest to a vector",
		Long:  `Exact k-nearest-neighbour search by Euclidean distance over every stored embedding.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := vector.ParseText(args[0])
			if err != nil {
				return err
			}
			k, _ := cmd.Flags().GetInt("number")
			if !cmd.Flags().Changed("number") {
				k = a.cfg.K
			}
			s, err := a.store()
			if err != nil {
				return err
			}
			matches, err := s.SimilaritySearch(cmd.Context(), query, k)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			if asJSON(cmd) {
				out := make([]map[string]any, 0, len(matches))
				for i := range matches {
					d := matches[i].Distance
					out = append(out, documentJSON(&matches[i].Document, &d))
				}
				return outputJSON(cmd, out)
			}
			for _, m := range matches {
				fmt.Fprintf(cmd.OutOrStdout(), "%.4f  %s\n", m.Distance, m.ID)
			}
			return nil
		},
	}
	cmd.Flags().IntP("number", "k", 10, "Maximum results")
	return cmd
}

func NewRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a stored document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.store()
			if err != nil {
				return err
			}
			return s.Remove(cmd.Context(), args[0])
		},
	}
}

func documentJSON(doc *vector.Document, distance *float64) map[string]any {
	out := map[string]any{
		"id":        doc.ID,
		"content":   doc.Content,
		"meta":      doc.Metadata,
		"embedding": vector.FormatText(doc.Embedding),
	}
	if distance != nil {
		out["distance"] = *distance
	}
	return out
}
