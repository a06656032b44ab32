package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"SASVerify/internal/address"
)

// newDeriveCmd builds the offline address derivation commands.
func newDeriveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive attestation program addresses without touching the network",
	}

	var version uint8

	schemaCmd := &cobra.Command{
		Use:   "schema <credential> <name>",
		Short: "Derive a schema address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := parsePubkeys(args, "credential")
			if err != nil {
				return err
			}

			addr, err := address.DeriveSchema(keys[0], args[1], version)
			if err != nil {
				return err
			}

			warnTruncated(cmd, args[1])
			fmt.Fprintln(cmd.OutOrStdout(), addr)
			return nil
		},
	}
	schemaCmd.Flags().Uint8Var(&version, "version", 1, "schema version")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "credential <authority> <name>",
			Short: "Derive a credential address",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				keys, err := parsePubkeys(args, "authority")
				if err != nil {
					return err
				}

				addr, err := address.DeriveCredential(keys[0], args[1])
				if err != nil {
					return err
				}

				warnTruncated(cmd, args[1])
				fmt.Fprintln(cmd.OutOrStdout(), addr)
				return nil
			},
		},
		schemaCmd,
		&cobra.Command{
			Use:   "attestation <credential> <schema> <nonce>",
			Short: "Derive an attestation address",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				keys, err := parsePubkeys(args, "credential", "schema", "nonce")
				if err != nil {
					return err
				}

				addr, err := address.DeriveAttestation(keys[0], keys[1], keys[2])
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), addr)
				return nil
			},
		},
		&cobra.Command{
			Use:   "mints <schema> <attestation>",
			Short: "Derive the schema group mint and attestation member mint",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				keys, err := parsePubkeys(args, "schema", "attestation")
				if err != nil {
					return err
				}

				schemaMint, err := address.DeriveSchemaMint(keys[0])
				if err != nil {
					return err
				}

				attestationMint, err := address.DeriveAttestationMint(keys[1])
				if err != nil {
					return err
				}

				return printJSON(cmd.OutOrStdout(), map[string]address.Pubkey{
					"schemaMint":      schemaMint,
					"attestationMint": attestationMint,
				})
			},
		},
		&cobra.Command{
			Use:   "token-account <owner> <mint>",
			Short: "Derive the associated Token-2022 account of owner for mint",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				keys, err := parsePubkeys(args, "owner", "mint")
				if err != nil {
					return err
				}

				addr, err := address.DeriveTokenAccount(keys[0], keys[1])
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), addr)
				return nil
			},
		},
		&cobra.Command{
			Use:   "program",
			Short: "Print the program's event and signing authorities",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				eventAuthority, err := address.DeriveEventAuthority()
				if err != nil {
					return err
				}

				sasAuthority, err := address.DeriveSASAuthority()
				if err != nil {
					return err
				}

				return printJSON(cmd.OutOrStdout(), map[string]address.Pubkey{
					"program":        address.SASProgram,
					"eventAuthority": eventAuthority,
					"sasAuthority":   sasAuthority,
				})
			},
		},
	)

	return cmd
}

// warnTruncated notes on stderr when a name exceeds the 32-byte seed limit.
func warnTruncated(cmd *cobra.Command, name string) {
	if len(name) > address.MaxSeedLength {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: name truncated to %d bytes for derivation: %q\n",
			address.MaxSeedLength, address.TruncateSeed(name))
	}
}
