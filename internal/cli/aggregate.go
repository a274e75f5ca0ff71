package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"stealthcompany.com/adtbridge/internal/adt"
)

func (a *app) aggregateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate <file>",
		Short: "Aggregate the encounters of a file and print the sanitized ADT messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			raws, err := fileSource(args[0])
			if err != nil {
				return err
			}

			comps, err := buildComponents(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer comps.Close()

			messages := []adt.Message{}
			for _, raw := range raws {
				aggregated, err := comps.aggregator.AggregateJSON(ctx, raw)
				if err != nil {
					return fmt.Errorf("failed to aggregate encounter: %w", err)
				}
				for _, message := range aggregated {
					messages = append(messages, adt.Sanitize(message))
				}
			}

			return writeJSON(cmd.OutOrStdout(), messages)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
