package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the identity admin CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "idctl",
		Short: "RxCheck identity administration",
		Long: `idctl checks CURP and RFC identifiers, hashes passwords, seeds the
first administrator and runs database migrations.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewValidateCmd())
	cmd.AddCommand(NewCheckDigitCmd())
	cmd.AddCommand(NewHashCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
