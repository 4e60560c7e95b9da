package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/stevemurr/eden-shim/collection"
)

// fixtures maps a collection name to the records to upsert into it.
//
//	profiles:
//	  - id: u1
//	    name: Ada
//	certificates:
//	  - title: Cert A
type fixtures map[string][]collection.Record

func loadFixtures(path string) (fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed FILE",
		Short: "Upsert the records in a YAML fixture file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadFixtures(args[0])
			if err != nil {
				return err
			}
			c, err := a.openClient()
			if err != nil {
				return err
			}
			defer c.Close()

			names := make([]string, 0, len(f))
			for name := range f {
				names = append(names, name)
			}
			sort.Strings(names)

			counts := make([]int, len(names))
			g, ctx := errgroup.WithContext(cmd.Context())
			for i, name := range names {
				if len(f[name]) == 0 {
					continue
				}
				g.Go(func() error {
					res, err := c.From(name).Upsert(f[name]...).Execute(ctx)
					if err != nil {
						return fmt.Errorf("seed %s: %w", name, err)
					}
					counts[i] = res.Count
					a.logger.Debug("seeded", zap.String("collection", name), zap.Int("records", res.Count))
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			for i, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", name, counts[i])
			}
			return nil
		},
	}
}
