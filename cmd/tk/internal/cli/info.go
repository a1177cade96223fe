package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tanker-db/tanker"
)

func newInfoCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "info [table]",
		Short: "list declared tables, or describe one table's columns",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx, closeFn, err := connect(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer func() { err = closeFn(err) }()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				names, err := tanker.Tables(ctx)
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(out, n)
				}
				return nil
			}

			t, err := tanker.Table(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "table %s\n", t.Name)
			fmt.Fprintf(out, "key: %v\n", t.Key)
			for _, u := range t.Unique {
				fmt.Fprintf(out, "unique: %v\n", u)
			}
			for _, c := range t.Columns {
				fmt.Fprintf(out, "  %-20s %s\n", c.Name, c.Kind)
			}
			return nil
		},
	}
}
