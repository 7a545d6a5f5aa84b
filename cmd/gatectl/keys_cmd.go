package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vogiaan1904/ticketbottle-gate/internal/ticket"
)

func newKeysCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage ticket signing keys",
	}
	cmd.AddCommand(newKeysGenerateCommand())
	return cmd
}

func newKeysGenerateCommand() *cobra.Command {
	var (
		bits    int
		privOut string
		pubOut  string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an RSA key pair in PEM form for signing tickets",
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, pub, err := ticket.GenerateKeyPair(bits)
			if err != nil {
				return err
			}
			if err := os.WriteFile(privOut, priv, 0o600); err != nil {
				return err
			}
			if err := os.WriteFile(pubOut, pub, 0o644); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\n", privOut, pubOut)
			return err
		},
	}
	cmd.Flags().IntVar(&bits, "bits", 2048, "RSA key size")
	cmd.Flags().StringVar(&privOut, "private-out", "ticket.key", "private key output path")
	cmd.Flags().StringVar(&pubOut, "public-out", "ticket.pub", "public key output path")
	return cmd
}
