package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	repo "github.com/vogiaan1904/ticketbottle-gate/internal/repository/redis"
	"github.com/vogiaan1904/ticketbottle-gate/internal/seed"
)

func newConfigCommand(d deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Seed and inspect gate configuration in the config store",
	}
	cmd.AddCommand(
		newConfigSeedCommand(d),
		newConfigShowCommand(d),
	)
	return cmd
}

func newConfigSeedCommand(d deps) *cobra.Command {
	return &cobra.Command{
		Use:   "seed FILE",
		Short: "Write the records of a YAML seed file to the config store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := seed.Load(args[0])
			if err != nil {
				return err
			}

			r, cleanup, err := d.openConfig(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if err := f.Apply(cmd.Context(), r); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "seeded global=%t queues=%d secrets=%d pages=%d\n",
				f.Global != nil, len(f.Queues), len(f.Secrets), len(f.Pages))
			return err
		},
	}
}

func newConfigShowCommand(d deps) *cobra.Command {
	var queue string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the global record, or one queue record, as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, cleanup, err := d.openConfig(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			var v any
			if queue != "" {
				v, err = r.GetQueue(cmd.Context(), queue)
			} else {
				v, err = r.GetGlobal(cmd.Context())
			}
			if errors.Is(err, repo.ErrNotFound) {
				return fmt.Errorf("no config record found")
			}
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(v); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	cmd.Flags().StringVarP(&queue, "queue", "q", "", "show this queue's override record instead of the global record")
	return cmd
}
