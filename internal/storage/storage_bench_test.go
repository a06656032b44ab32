package storage

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"path/filepath"
	"testing"

	"SASVerify/internal/address"
	"SASVerify/internal/ledger"
)

// benchStore creates a store for benchmarks.
func benchStore(b *testing.B) *Store {
	b.Helper()

	s, err := Open(filepath.Join(b.TempDir(), "db"))
	if err != nil {
		b.Fatalf("failed to open store: %v", err)
	}
	b.Cleanup(func() { s.Close() })

	return s
}

// makeAccount creates an attestation-sized account at an address derived from i.
func makeAccount(i int) *ledger.Account {
	var addr address.Pubkey
	binary.BigEndian.PutUint64(addr[:], uint64(i))

	data := make([]byte, 200)
	rand.Read(data)

	return &ledger.Account{Address: addr, Owner: address.SASProgram, Lamports: 1, Data: data}
}

func BenchmarkPutAccounts(b *testing.B) {
	s := benchStore(b)

	batch := make([]*ledger.Account, 100)
	for i := range batch {
		batch[i] = makeAccount(i)
	}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := s.PutAccounts(uint64(i), batch); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGetAccount(b *testing.B) {
	s := benchStore(b)

	const n = 1000
	batch := make([]*ledger.Account, n)
	for i := range batch {
		batch[i] = makeAccount(i)
	}

	if err := s.PutAccounts(1, batch); err != nil {
		b.Fatal(err)
	}

	ctx := context.Background()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := s.GetAccount(ctx, batch[i%n].Address); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkParallelGetAccount(b *testing.B) {
	s := benchStore(b)

	const n = 1000
	batch := make([]*ledger.Account, n)
	for i := range batch {
		batch[i] = makeAccount(i)
	}

	if err := s.PutAccounts(1, batch); err != nil {
		b.Fatal(err)
	}

	ctx := context.Background()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if _, err := s.GetAccount(ctx, batch[i%n].Address); err != nil {
				b.Fatal(err)
			}
			i++
		}
	})
}
