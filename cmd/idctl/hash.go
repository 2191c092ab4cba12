package main

import (
	"bufio"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/oksasatya/rxcheck-identity/internal/application"
	"github.com/oksasatya/rxcheck-identity/pkg/helpers"
)

// NewHashCmd creates the hash subcommand.
func NewHashCmd() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash [PASSWORD]",
		Short: "Print the bcrypt hash of a password",
		Long: `Print the bcrypt hash of a password. With no argument the password is
read from the first line of stdin, keeping it out of shell history.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var plain string
			if len(args) == 1 {
				plain = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return oops.Code("INVALID_ARGUMENT").Wrapf(err, "read password")
				}
				plain = strings.TrimRight(line, "\r\n")
			}
			hash, err := application.NewCredentialManager(helpers.NewBcryptHasher(cost)).Hash(plain)
			if err != nil {
				return oops.Code("HASH_FAILED").Wrap(err)
			}
			cmd.Println(hash)
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", 10, "bcrypt cost")
	return cmd
}
