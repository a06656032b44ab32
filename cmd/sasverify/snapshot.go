package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"SASVerify/internal/address"
	"SASVerify/internal/genesis"
	"SASVerify/internal/ledger"
	"SASVerify/internal/logger"
	"SASVerify/internal/snapshot"
	"SASVerify/internal/storage"
)

// newSnapshotCmd builds the snapshot command group.
func newSnapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export, import and generate pinned ledger snapshots",
	}

	cmd.AddCommand(
		newSnapshotExportCmd(a),
		newSnapshotImportCmd(a),
		newSnapshotGenesisCmd(),
	)

	return cmd
}

// newSnapshotExportCmd copies the accounts behind some verifications into a file.
func newSnapshotExportCmd(a *app) *cobra.Command {
	var pairs []string

	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Write the accounts needed to verify schema:nonce pairs to a snapshot",
		Long: `Write the accounts needed to verify each --pair schema:nonce to a
snapshot file: schema, credential, attestation, both mints and the clock
sysvar. The file can then be verified offline with --snapshot.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(pairs) == 0 {
				return errors.New("at least one --pair is required")
			}

			src, err := openLedger(a.cfg)
			if err != nil {
				return err
			}
			defer src.Close()

			ctx := commandContext(cmd)
			start := time.Now()

			slot, err := src.slot(ctx)
			if err != nil {
				return errors.Wrap(err, "read slot")
			}

			var addrs []address.Pubkey
			for _, p := range pairs {
				schema, nonce, err := parsePair(p)
				if err != nil {
					return err
				}

				related, err := snapshot.RelatedAddresses(ctx, src.acc, schema, nonce)
				if err != nil {
					return errors.Wrapf(err, "pair %s", p)
				}
				addrs = append(addrs, related...)
			}

			accounts, err := snapshot.Collect(ctx, src.acc, addrs)
			if err != nil {
				return err
			}

			if err := snapshot.WriteFile(args[0], slot, accounts); err != nil {
				return err
			}

			logger.Info("snapshot exported",
				"path", args[0],
				"slot", slot,
				"accounts", len(accounts),
				logger.Timed(start),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d accounts at slot %d to %s\n", len(accounts), slot, args[0])

			return nil
		},
	}

	cmd.Flags().StringSliceVar(&pairs, "pair", nil, "schema:nonce pair to export (repeatable)")

	return cmd
}

// newSnapshotImportCmd loads a snapshot file into the pinned store.
func newSnapshotImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Load a snapshot into the account store given by --store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Ledger.Store == "" {
				return errors.New("--store is required")
			}

			data, err := snapshot.ReadFile(args[0])
			if err != nil {
				return err
			}

			s, err := storage.Open(a.cfg.Ledger.Store)
			if err != nil {
				return errors.Wrap(err, "open store")
			}
			defer s.Close()

			snap, err := snapshot.Apply(s, data)
			if err != nil {
				return errors.Wrapf(err, "import %s", args[0])
			}

			fmt.Fprintf(cmd.OutOrStdout(), "imported %d accounts at slot %d into %s\n",
				len(snap.Accounts), snap.Slot, a.cfg.Ledger.Store)

			return nil
		},
	}
}

// newSnapshotGenesisCmd writes the reference organization to a snapshot.
func newSnapshotGenesisCmd() *cobra.Command {
	var (
		label string
		slot  uint64
		at    string
	)

	cmd := &cobra.Command{
		Use:   "genesis <file>",
		Short: "Generate a snapshot holding a reference credential, schema and attestation",
		Long: `Generate a snapshot holding the TEST-ORGANIZATION credential, the
THE-BASICS schema and a tokenized attestation valid for 365 days, with the
clock sysvar set to the creation time. Prints the generated addresses.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return errors.Wrap(err, "invalid --at")
				}
				now = t
			}

			l, b, err := genesis.BuildBasics(label, slot, now)
			if err != nil {
				return err
			}

			if err := snapshot.WriteFile(args[0], l.Slot(), l.Accounts()); err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), b)
		},
	}

	cmd.Flags().StringVar(&label, "label", "sasverify", "seed label for the generated keys")
	cmd.Flags().Uint64Var(&slot, "slot", 1, "slot recorded in the snapshot")
	cmd.Flags().StringVar(&at, "at", "", "creation time (RFC 3339, default now)")

	return cmd
}

// parsePair splits a schema:nonce argument.
func parsePair(p string) (schema, nonce address.Pubkey, err error) {
	parts := strings.Split(p, ":")
	if len(parts) != 2 {
		return schema, nonce, errors.Errorf("invalid pair %q: want schema:nonce", p)
	}

	keys, err := parsePubkeys(parts, "schema", "nonce")
	if err != nil {
		return schema, nonce, errors.Wrapf(err, "pair %q", p)
	}

	return keys[0], keys[1], nil
}

// compile-time check that the pinned store can back verification.
var _ ledger.Accessor = (*storage.Store)(nil)
