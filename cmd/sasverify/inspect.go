package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"SASVerify/internal/address"
	"SASVerify/internal/ledger"
	"SASVerify/internal/sas"
	"SASVerify/internal/token"
)

// Account kinds accepted by inspect --kind.
const (
	kindAuto        = "auto"
	kindCredential  = "credential"
	kindSchema      = "schema"
	kindAttestation = "attestation"
	kindMint        = "mint"
	kindRaw         = "raw"
)

// newInspectCmd builds the inspect command.
func newInspectCmd(a *app) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "inspect <address>",
		Short: "Fetch and decode an account",
		Long: `Fetch and decode a credential, schema, attestation or Token-2022 mint.

With --kind auto the account type is chosen from its owner and discriminator.
Attestation payloads are decoded with their schema when it can be read.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := parsePubkeys(args, "address")
			if err != nil {
				return err
			}

			src, err := openLedger(a.cfg)
			if err != nil {
				return err
			}
			defer src.Close()

			out, err := inspectAccount(commandContext(cmd), src.acc, keys[0], kind)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", kindAuto, "account kind: auto, credential, schema, attestation, mint or raw")

	return cmd
}

// inspectAccount fetches addr and decodes it as kind.
func inspectAccount(ctx context.Context, acc ledger.Accessor, addr address.Pubkey, kind string) (map[string]any, error) {
	raw, err := acc.GetAccount(ctx, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s", addr)
	}

	if kind == kindAuto {
		kind = detectKind(raw)
	}

	out := map[string]any{
		"address":  addr,
		"owner":    raw.Owner,
		"lamports": raw.Lamports,
		"kind":     kind,
	}

	switch kind {
	case kindCredential:
		out["account"], err = ledger.FetchCredential(ctx, acc, addr)
	case kindSchema:
		out["account"], err = ledger.FetchSchema(ctx, acc, addr)
	case kindAttestation:
		var att *sas.Attestation
		if att, err = ledger.FetchAttestation(ctx, acc, addr); err == nil {
			out["account"] = att
			attachRecord(ctx, acc, att, out)
		}
	case kindMint:
		var m *token.Mint
		if m, err = ledger.FetchMint(ctx, acc, addr); err == nil {
			out["account"] = describeMint(m)
		}
	case kindRaw:
		out["data"] = raw.Data
	default:
		return nil, errors.Errorf("unknown kind %q", kind)
	}

	if err != nil {
		return nil, errors.Wrapf(err, "decode %s as %s", addr, kind)
	}

	return out, nil
}

// detectKind picks a decoder from the owner and discriminator.
func detectKind(a *ledger.Account) string {
	switch {
	case a.Owner == address.Token2022Program:
		return kindMint
	case a.Owner != address.SASProgram || len(a.Data) == 0:
		return kindRaw
	}

	switch a.Data[0] {
	case sas.DiscriminatorCredential:
		return kindCredential
	case sas.DiscriminatorSchema:
		return kindSchema
	case sas.DiscriminatorAttestation:
		return kindAttestation
	default:
		return kindRaw
	}
}

// attachRecord decodes the attestation payload with its schema.
func attachRecord(ctx context.Context, acc ledger.Accessor, att *sas.Attestation, out map[string]any) {
	schema, err := ledger.FetchSchema(ctx, acc, att.Schema)
	if err != nil {
		out["recordError"] = err.Error()
		return
	}

	record, err := sas.DecodeData(schema, att.Data)
	if err != nil {
		out["recordError"] = err.Error()
		return
	}

	out["record"] = record
}

// describeMint renders the mint extensions the verifier understands.
func describeMint(m *token.Mint) map[string]any {
	out := map[string]any{
		"mintAuthority":   m.MintAuthority,
		"freezeAuthority": m.FreezeAuthority,
		"supply":          m.Supply,
		"decimals":        m.Decimals,
		"isInitialized":   m.IsInitialized,
	}

	if g, err := m.Group(); err == nil {
		out["group"] = g
	}

	if gm, err := m.GroupMember(); err == nil {
		out["groupMember"] = gm
	}

	if md, err := m.Metadata(); err == nil {
		out["metadata"] = md
	}

	return out
}
