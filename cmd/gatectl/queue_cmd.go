package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/structpb"
)

func addGrpcAddrFlag(cmd *cobra.Command, addr *string) {
	cmd.Flags().StringVar(addr, "grpc-addr", "localhost:50056", "gate gRPC address")
}

func newStatsCommand(d deps) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "stats QUEUE",
		Short: "Show a queue's cursor, length and waiting visitors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, cleanup, err := d.dialAdmin(addr)
			if err != nil {
				return err
			}
			defer cleanup()

			out, err := cli.GetQueueStats(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printStruct(cmd, out)
		},
	}
	addGrpcAddrFlag(cmd, &addr)
	return cmd
}

func newReleaseCommand(d deps) *cobra.Command {
	var (
		addr   string
		amount int64
		by     string
	)
	cmd := &cobra.Command{
		Use:   "release QUEUE",
		Short: "Admit the next visitors of a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if amount < 1 {
				return fmt.Errorf("--amount must be at least 1, got %d", amount)
			}
			cli, cleanup, err := d.dialAdmin(addr)
			if err != nil {
				return err
			}
			defer cleanup()

			out, err := cli.ReleaseVisitors(cmd.Context(), args[0], amount, by)
			if err != nil {
				return err
			}
			return printStruct(cmd, out)
		},
	}
	addGrpcAddrFlag(cmd, &addr)
	cmd.Flags().Int64VarP(&amount, "amount", "n", 1, "number of visitors to admit")
	cmd.Flags().StringVar(&by, "by", "gatectl", "operator recorded in the release event")
	return cmd
}

func printStruct(cmd *cobra.Command, s *structpb.Struct) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(s.AsMap())
}
