package cli

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tanker-db/tanker"
)

func newWriteCmd(configPath *string) *cobra.Command {
	var (
		file  string
		purge bool
	)

	cmd := &cobra.Command{
		Use:   "write <table>",
		Short: "upsert CSV rows (stdin by default) into a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			tableName := args[0]

			ctx, closeFn, err := connect(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer func() { err = closeFn(err) }()

			rc, err := readAll(file)
			if err != nil {
				return err
			}
			defer rc.Close()

			rows, fields, err := readCSVRows(rc)
			if err != nil {
				return err
			}

			specs := make([]tanker.FieldSpec, len(fields))
			for i, f := range fields {
				specs[i] = tanker.FieldSpec{Name: f, Desc: f}
			}

			v, err := tanker.NewView(ctx, tableName, specs...)
			if err != nil {
				return err
			}

			opts := tanker.DefaultWriteOptions()
			opts.Purge = purge

			res, err := v.Write(ctx, rows, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "filtered %d deleted %d\n", res.Filtered, res.Deleted)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV input file (default stdin)")
	cmd.Flags().BoolVar(&purge, "purge", false, "delete rows not present in the input (full replace)")
	return cmd
}

func readCSVRows(r io.Reader) ([]map[string]any, []string, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	var rows []map[string]any
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		row := make(map[string]any, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, header, nil
}
