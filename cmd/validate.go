package cmd

import (
	"fmt"

	"github.com/sarchlab/curvesim/scenario"
	"github.com/spf13/cobra"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <scenario.yaml>...",
		Short: "Check scenario files without running them.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				s, err := scenario.Load(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}

				fmt.Fprintf(cmd.OutOrStdout(),
					"%s: %s, %d entities, %d events, %d mutations\n",
					path, s.Name, len(s.Entities), len(s.Events),
					len(s.Mutations))
			}

			return nil
		},
	}
}
