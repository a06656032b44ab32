//go:build ignore

// compare_snapshots reports the accounts that differ between two pinned
// ledgers. Each argument is a snapshot file or an account store directory.
package main

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"SASVerify/internal/address"
	"SASVerify/internal/ledger"
	"SASVerify/internal/snapshot"
	"SASVerify/internal/storage"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <snapshot|store> <snapshot|store>\n", os.Args[0])
		os.Exit(1)
	}

	path1 := os.Args[1]
	path2 := os.Args[2]

	accounts1, slot1, err := load(path1)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", path1, err)
		os.Exit(1)
	}

	accounts2, slot2, err := load(path2)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", path2, err)
		os.Exit(1)
	}

	fmt.Printf("A (%s): %d accounts at slot %d\n", path1, len(accounts1), slot1)
	fmt.Printf("B (%s): %d accounts at slot %d\n", path2, len(accounts2), slot2)

	missing1, missing2, different := compare(accounts1, accounts2)

	if len(missing1) == 0 && len(missing2) == 0 && len(different) == 0 {
		fmt.Println("\nLedgers are identical")
		os.Exit(0)
	}

	fmt.Println("\nLedgers differ:")
	report("Accounts only in A", missing1)
	report("Accounts only in B", missing2)
	report("Accounts with different content", different)

	os.Exit(1)
}

// load reads a store directory or a snapshot file.
func load(path string) (map[address.Pubkey]*ledger.Account, uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, err
	}

	var (
		accounts []*ledger.Account
		slot     uint64
	)

	if info.IsDir() {
		s, err := storage.Open(path)
		if err != nil {
			return nil, 0, err
		}
		defer s.Close()

		if accounts, slot, err = snapshot.CollectStore(s); err != nil {
			return nil, 0, err
		}
	} else {
		data, err := snapshot.ReadFile(path)
		if err != nil {
			return nil, 0, err
		}

		snap, err := snapshot.Read(data)
		if err != nil {
			return nil, 0, err
		}
		accounts, slot = snap.Accounts, snap.Slot
	}

	out := make(map[address.Pubkey]*ledger.Account, len(accounts))
	for _, a := range accounts {
		out[a.Address] = a
	}

	return out, slot, nil
}

func compare(a, b map[address.Pubkey]*ledger.Account) (missing1, missing2, different []address.Pubkey) {
	for addr, acc := range a {
		other, ok := b[addr]
		if !ok {
			missing1 = append(missing1, addr)
			continue
		}

		if acc.Owner != other.Owner || acc.Lamports != other.Lamports ||
			acc.Executable != other.Executable || !bytes.Equal(acc.Data, other.Data) {
			different = append(different, addr)
		}
	}

	for addr := range b {
		if _, ok := a[addr]; !ok {
			missing2 = append(missing2, addr)
		}
	}

	return
}

func report(title string, addrs []address.Pubkey) {
	if len(addrs) == 0 {
		return
	}

	sort.Slice(addrs, func(i, j int) bool { return bytes.Compare(addrs[i][:], addrs[j][:]) < 0 })

	fmt.Printf("  - %s: %d\n", title, len(addrs))
	for _, addr := range addrs {
		fmt.Printf("      %s\n", addr)
	}
}
