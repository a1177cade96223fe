package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tanker-db/tanker"
	"github.com/tanker-db/tanker/tkerr"
)

func newDeleteCmd(configPath *string) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "delete <table>",
		Short: "delete rows matching a filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if filter == "" {
				return &tkerr.ArgError{Name: "filter", Message: "delete requires -F/--filter"}
			}

			ctx, closeFn, err := connect(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer func() { err = closeFn(err) }()

			v, err := tanker.NewView(ctx, args[0])
			if err != nil {
				return err
			}

			n, err := v.DeleteByFilter(ctx, filter)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d\n", n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&filter, "filter", "F", "", "s-expression filter (required)")
	return cmd
}
