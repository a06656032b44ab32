package main

import (
	"context"

	"github.com/pkg/errors"

	"SASVerify/internal/ledger"
	"SASVerify/internal/logger"
	"SASVerify/internal/rpc"
	"SASVerify/internal/snapshot"
	"SASVerify/internal/storage"
)

// ledgerSource is an opened account source.
type ledgerSource struct {
	acc   ledger.Accessor // acc reads accounts, wrapped with the retry policy
	kind  string          // kind is snapshot, store or rpc
	slot  func(ctx context.Context) (uint64, error)
	close func()
}

// Close releases the source.
func (l *ledgerSource) Close() {
	if l.close != nil {
		l.close()
	}
}

// openLedger opens the configured source: snapshot file, store, then RPC.
func openLedger(cfg *Config) (*ledgerSource, error) {
	src, err := openRawLedger(cfg)
	if err != nil {
		return nil, err
	}

	src.acc = ledger.WithRetry(src.acc, cfg.Retry.Policy())

	logger.Debug("ledger opened", "source", src.kind, "retries", cfg.Retry.Max)

	return src, nil
}

func openRawLedger(cfg *Config) (*ledgerSource, error) {
	switch {
	case cfg.Ledger.Snapshot != "":
		data, err := snapshot.ReadFile(cfg.Ledger.Snapshot)
		if err != nil {
			return nil, errors.Wrap(err, "open snapshot")
		}

		mem, snap, err := snapshot.Load(data)
		if err != nil {
			return nil, errors.Wrapf(err, "load snapshot %s", cfg.Ledger.Snapshot)
		}

		logger.Info("using snapshot ledger", "path", cfg.Ledger.Snapshot, "slot", snap.Slot, "accounts", len(snap.Accounts))

		return &ledgerSource{
			acc:  mem,
			kind: "snapshot",
			slot: func(context.Context) (uint64, error) { return snap.Slot, nil },
		}, nil

	case cfg.Ledger.Store != "":
		s, err := storage.Open(cfg.Ledger.Store)
		if err != nil {
			return nil, errors.Wrap(err, "open store")
		}

		return &ledgerSource{
			acc:   s,
			kind:  "store",
			slot:  func(context.Context) (uint64, error) { return s.Slot() },
			close: func() { s.Close() },
		}, nil

	default:
		c, err := rpc.NewClient(rpc.Config{
			Endpoint:   cfg.RPC.Endpoint,
			Commitment: cfg.RPC.Commitment,
			Encoding:   cfg.RPC.Encoding,
			Timeout:    cfg.RPC.Timeout,
		})
		if err != nil {
			return nil, errors.Wrap(err, "create rpc client")
		}

		return &ledgerSource{
			acc:   c,
			kind:  "rpc",
			slot:  c.GetSlot,
			close: c.Close,
		}, nil
	}
}
