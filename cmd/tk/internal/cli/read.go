package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tanker-db/tanker"
)

func newReadCmd(configPath *string) *cobra.Command {
	var (
		filter string
		limit  int64
		order  string
		table  bool
	)

	cmd := &cobra.Command{
		Use:   "read <table>[+field...]",
		Short: "read rows from a view, defaulting to the table's default fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			tableName, fieldNames := splitTableSpec(args[0])

			ctx, closeFn, err := connect(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer func() { err = closeFn(err) }()

			specs := make([]tanker.FieldSpec, len(fieldNames))
			for i, f := range fieldNames {
				specs[i] = tanker.FieldSpec{Name: f, Desc: f}
			}

			v, err := tanker.NewView(ctx, tableName, specs...)
			if err != nil {
				return err
			}

			opts := tanker.ReadOptions{}
			if filter != "" {
				opts.Filter = filter
			}
			if limit > 0 {
				opts.Limit = limit
				opts.HasLimit = true
			}
			if order != "" {
				for _, term := range strings.Split(order, ",") {
					term = strings.TrimSpace(term)
					desc := false
					if strings.HasPrefix(term, "-") {
						desc = true
						term = term[1:]
					}
					opts.Order = append(opts.Order, tanker.Order{Expr: term, Desc: desc})
				}
			}

			cur, err := v.Read(ctx, opts)
			if err != nil {
				return err
			}
			defer cur.Close()

			rows, err := cur.All()
			if err != nil {
				return err
			}

			if table {
				return printTable(cmd.OutOrStdout(), cur.Fields(), rows)
			}
			return printCSV(cmd.OutOrStdout(), cur.Fields(), rows)
		},
	}

	cmd.Flags().StringVarP(&filter, "filter", "F", "", "s-expression filter")
	cmd.Flags().Int64VarP(&limit, "limit", "l", 0, "row limit")
	cmd.Flags().StringVarP(&order, "order", "o", "", "comma-separated order terms, prefix - for descending")
	cmd.Flags().BoolVarP(&table, "table", "t", false, "print a colorized table instead of CSV")
	return cmd
}

// splitTableSpec parses "table+field1+field2" into the table name and an
// explicit field list; an empty list tells NewView to fall back to the
// table's default fields.
func splitTableSpec(spec string) (string, []string) {
	parts := strings.Split(spec, "+")
	return parts[0], parts[1:]
}

func printCSV(w io.Writer, fields []string, rows [][]any) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(fields); err != nil {
		return err
	}
	for _, row := range rows {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = fmt.Sprint(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func printTable(w io.Writer, fields []string, rows [][]any) error {
	header := color.New(color.FgCyan, color.Bold)
	header.Fprintln(w, strings.Join(fields, "\t"))
	for _, row := range rows {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = fmt.Sprint(v)
		}
		fmt.Fprintln(w, strings.Join(rec, "\t"))
	}
	return nil
}
