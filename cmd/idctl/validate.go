package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/oksasatya/rxcheck-identity/internal/domain/identifier"
)

// NewValidateCmd creates the validate subcommand.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate curp|rfc VALUE",
		Short: "Validate a CURP or RFC and print its normalized form",
		Args:  cobra.ExactArgs(2),
		RunE:  runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	var kind identifier.Kind
	switch args[0] {
	case "curp":
		kind = identifier.National
	case "rfc":
		kind = identifier.Tax
	default:
		return oops.Code("INVALID_ARGUMENT").Errorf("unknown identifier kind %q, want curp or rfc", args[0])
	}

	v, err := identifier.Validate(args[1], kind)
	if err != nil {
		return oops.Code("INVALID_IDENTIFIER").With("kind", kind.String()).Wrap(err)
	}
	cmd.Println(v)
	return nil
}

// NewCheckDigitCmd creates the checkdigit subcommand.
func NewCheckDigitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkdigit FIRST17",
		Short: "Compute the CURP verification digit for the first 17 characters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			first := identifier.Normalize(args[0])
			d, err := identifier.CheckDigit(first)
			if err != nil {
				return oops.Code("INVALID_ARGUMENT").Wrap(err)
			}
			cmd.Println(first + string(d))
			return nil
		},
	}
}
