package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/viant/sparsevec/vector"
)

func parseVectors(args []string) ([]*vector.SparseVector, error) {
	out := make([]*vector.SparseVector, len(args))
	for i, arg := range args {
		v, err := vector.ParseText(arg)
		if err != nil {
			return nil, fmt.Errorf("vector %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

func NewSimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sim <a> <b>",
		Short: "Compare two vectors",
		Long:  `Print the dot product, Euclidean distance, cosine and Jaccard similarity of two sparse vectors given as "dim:value,..." text.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vs, err := parseVectors(args)
			if err != nil {
				return err
			}
			a, b := vs[0], vs[1]
			out := map[string]any{
				"dot":      a.DotProduct(b),
				"distance": a.Distance(b),
				"jaccard":  a.JaccardSimilarity(b),
			}
			cosine, err := a.CosineSimilarity(b)
			switch {
			case errors.Is(err, vector.ErrUndefinedSimilarity):
				out["cosine"] = nil
			case err != nil:
				return err
			default:
				out["cosine"] = cosine
			}
			if asJSON(cmd) {
				return outputJSON(cmd, out)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "dot       %g\n", out["dot"])
			fmt.Fprintf(w, "distance  %g\n", out["distance"])
			if out["cosine"] == nil {
				fmt.Fprintln(w, "cosine    undefined")
			} else {
				fmt.Fprintf(w, "cosine    %g\n", cosine)
			}
			fmt.Fprintf(w, "jaccard   %g\n", out["jaccard"])
			return nil
		},
	}
}

func NewNearestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nearest <query> <candidate>...",
		Short: "Find the candidate closest to the query",
		Long:  `Print the zero-based position of the candidate with the smallest Euclidean distance to the query; ties go to the first.`,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vs, err := parseVectors(args)
			if err != nil {
				return err
			}
			idx, err := vector.Nearest(vs[0], vs[1:])
			if err != nil {
				return err
			}
			sq := vs[0].SquareOfDistance(vs[idx+1])
			if asJSON(cmd) {
				return outputJSON(cmd, map[string]any{"index": idx, "squared_distance": sq})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d  %g\n", idx, sq)
			return nil
		},
	}
}

func NewCombineCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "combine plus|minus <a> <b>",
		Short:     "Add or subtract two vectors",
		Args:      cobra.ExactArgs(3),
		ValidArgs: []string{"plus", "minus"},
		RunE: func(cmd *cobra.Command, args []string) error {
			vs, err := parseVectors(args[1:])
			if err != nil {
				return err
			}
			var out *vector.SparseVector
			switch args[0] {
			case "plus":
				out = vs[0].Plus(vs[1])
			case "minus":
				out = vs[0].Minus(vs[1])
			default:
				return fmt.Errorf("unknown operation %q, want plus or minus", args[0])
			}
			return printVector(cmd, out)
		},
	}
}

func NewScaleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scale <a> <factor>",
		Short: "Multiply a vector by a scalar",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vs, err := parseVectors(args[:1])
			if err != nil {
				return err
			}
			factor, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("factor: %w", err)
			}
			return printVector(cmd, vs[0].Multiply(factor))
		},
	}
}

func NewDivideCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "divide <a> <divisor>",
		Short: "Divide a vector by a scalar",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vs, err := parseVectors(args[:1])
			if err != nil {
				return err
			}
			divisor, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("divisor: %w", err)
			}
			out, err := vs[0].Divide(divisor)
			if err != nil {
				return err
			}
			return printVector(cmd, out)
		},
	}
}

func printVector(cmd *cobra.Command, v *vector.SparseVector) error {
	if asJSON(cmd) {
		m := make(map[string]float64, v.Len())
		v.Range(func(dim vector.Dimension, value float64) bool {
			m[strconv.FormatUint(uint64(dim), 10)] = value
			return true
		})
		return outputJSON(cmd, m)
	}
	fmt.Fprintln(cmd.OutOrStdout(), vector.FormatText(v))
	return nil
}
