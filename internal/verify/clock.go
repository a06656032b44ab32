package verify

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"SASVerify/internal/address"
	"SASVerify/internal/ledger"
)

// clockTimestampOffset is the position of unix_timestamp in the clock sysvar.
const clockTimestampOffset = 32

// Clock supplies the time expiry is compared against.
type Clock interface {
	Now(ctx context.Context) (time.Time, error)
}

// SystemClock reads the local wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now(context.Context) (time.Time, error) {
	return time.Now(), nil
}

// FixedClock always reports the same instant.
type FixedClock time.Time

// Now implements Clock.
func (c FixedClock) Now(context.Context) (time.Time, error) {
	return time.Time(c), nil
}

// LedgerClock reads the cluster time from the clock sysvar.
type LedgerClock struct {
	Accessor ledger.Accessor // Accessor reads the sysvar account
}

// Now implements Clock.
func (c LedgerClock) Now(ctx context.Context) (time.Time, error) {
	account, err := c.Accessor.GetAccount(ctx, address.ClockSysvar)
	if err != nil {
		return time.Time{}, fmt.Errorf("read clock sysvar:\n%w", err)
	}

	if len(account.Data) < clockTimestampOffset+8 {
		return time.Time{}, fmt.Errorf("%w: clock sysvar is %d bytes", ledger.ErrDecode, len(account.Data))
	}

	ts := int64(binary.LittleEndian.Uint64(account.Data[clockTimestampOffset:]))

	return time.Unix(ts, 0), nil
}
