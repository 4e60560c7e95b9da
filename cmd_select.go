package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stevemurr/eden-shim/collection"
)

func newSelectCmd(a *app) *cobra.Command {
	var (
		eqs     []string
		columns []string
		single  bool
	)
	cmd := &cobra.Command{
		Use:   "select COLLECTION",
		Short: "Print the records of a collection as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.openClient()
			if err != nil {
				return err
			}
			defer c.Close()

			b := c.From(args[0]).Select(columns...)
			for _, eq := range eqs {
				field, value, ok := strings.Cut(eq, "=")
				if !ok || field == "" {
					return fmt.Errorf("invalid --eq %q, want field=value", eq)
				}
				b.Eq(field, collection.Text(value))
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if single {
				row, err := b.Single(cmd.Context())
				if err != nil {
					return err
				}
				return enc.Encode(row)
			}
			res, err := b.Execute(cmd.Context())
			if err != nil {
				return err
			}
			return enc.Encode(res.Data)
		},
	}
	cmd.Flags().StringArrayVar(&eqs, "eq", nil, "equality filter field=value (repeatable, string values)")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "fields to return")
	cmd.Flags().BoolVar(&single, "single", false, "return exactly one record or fail")
	return cmd
}
