package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"SASVerify/internal/verify"
)

// newVerifyCmd builds the verify command.
func newVerifyCmd(a *app) *cobra.Command {
	var token, detail bool

	cmd := &cobra.Command{
		Use:   "verify <schema> <nonce>",
		Short: "Check whether nonce holds a valid attestation under schema",
		Long: `Check whether nonce holds a valid attestation under schema.

Prints "valid" or "invalid" and exits with status 1 when invalid. --detail
prints the full result, including why verification failed. --token checks
the attestation's token instead; that path has no expiry check.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := parsePubkeys(args, "schema", "nonce")
			if err != nil {
				return err
			}

			src, err := openLedger(a.cfg)
			if err != nil {
				return err
			}
			defer src.Close()

			opts, err := a.cfg.verifyOptions(src.acc)
			if err != nil {
				return err
			}

			v := verify.New(src.acc, opts)

			check := v.Check
			if token {
				check = v.CheckToken
			}
			res := check(commandContext(cmd), keys[0], keys[1])

			if detail {
				if err := printJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			} else if res.Valid() {
				fmt.Fprintln(cmd.OutOrStdout(), "valid")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "invalid")
			}

			if !res.Valid() {
				return errInvalid
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&token, "token", false, "verify through the attestation token")
	cmd.Flags().BoolVar(&detail, "detail", false, "print the full verification result as JSON")

	return cmd
}
