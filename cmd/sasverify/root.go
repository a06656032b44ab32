package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"SASVerify/internal/address"
	"SASVerify/internal/logger"
)

// errInvalid marks a verification that completed with a negative verdict.
var errInvalid = errors.New("attestation is not valid")

// app carries state shared by the command tree.
type app struct {
	cfgFile string  // cfgFile is the --config flag
	cfg     *Config // cfg is loaded before any command runs
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "sasverify",
		Short: "Verify attestations issued by the Solana Attestation Service.",
		Long: `sasverify derives attestation program addresses, reads credentials,
schemas and attestations from a ledger and decides whether a subject holds a
valid attestation.

The ledger is a JSON-RPC endpoint by default, or a pinned snapshot file or
account store for offline verification.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			vp, err := newViper(a.cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			cfg, err := loadConfig(vp)
			if err != nil {
				return err
			}

			logger.Init(cfg.Log.Level)
			a.cfg = cfg

			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./sasverify.yaml or ~/.config/sasverify/sasverify.yaml)")
	addConfigFlags(root.PersistentFlags())

	root.AddCommand(
		newDeriveCmd(),
		newVerifyCmd(a),
		newInspectCmd(a),
		newSnapshotCmd(a),
		newServeCmd(a),
	)

	return root
}

// parsePubkeys parses base58 arguments, naming the offending one on error.
func parsePubkeys(args []string, names ...string) ([]address.Pubkey, error) {
	out := make([]address.Pubkey, len(names))
	for i, name := range names {
		pk, err := address.ParsePubkey(args[i])
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s", name)
		}
		out[i] = pk
	}
	return out, nil
}

// commandContext returns the command's context, or Background when the
// tree was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode output")
	}

	_, err = fmt.Fprintln(w, string(data))
	return err
}
