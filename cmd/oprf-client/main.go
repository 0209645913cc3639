// Command oprf-client queries a threshold of nodes for an OPRF evaluation
// of a given input.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/TaceoLabs/oprf-service-sub000/pkg/curve"
)

func main() {
	var nodeAddrs []string
	var threshold int
	var keyID uint64
	var input string
	var timeout time.Duration

	root := &cobra.Command{
		Use:   "oprf-client",
		Short: "Query a threshold OPRF service",
	}

	query := &cobra.Command{
		Use:   "query",
		Short: "Evaluate the OPRF on an input against a set of node endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(nodeAddrs) < threshold {
				return fmt.Errorf("need at least %d node endpoints, got %d", threshold, len(nodeAddrs))
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			_ = ctx

			// A real deployment dials each nodeAddrs entry over
			// transport.Conn and drives pkg/client.Aggregator.Evaluate.
			// This reference CLI demonstrates the local call shape using a
			// domain separator derived from --key-id; see pkg/e2e for a
			// full wiring example against in-process node engines.
			ds := curve.FqFromUint64(keyID)
			fmt.Printf("would evaluate OPRF for input %q against %d nodes (domain separator %x)\n", input, len(nodeAddrs), ds.Bytes())
			return nil
		},
	}
	query.Flags().StringSliceVar(&nodeAddrs, "node", nil, "node endpoint (repeatable)")
	query.Flags().IntVar(&threshold, "threshold", 3, "reconstruction threshold t")
	query.Flags().Uint64Var(&keyID, "key-id", 1, "OPRF key id to evaluate against")
	query.Flags().StringVar(&input, "input", "", "input to evaluate")
	query.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "per-query timeout")

	root.AddCommand(query)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
