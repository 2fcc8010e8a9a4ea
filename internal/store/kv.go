package store

import "context"

// Logical keys of the persisted records.
const (
	KeyAccount     = "account"
	KeyTrades      = "trades"
	KeyDeposits    = "deposits"
	KeyWithdrawals = "withdrawals"
)

// Store is a synchronous key/value space holding serialized records.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	// SetMany writes all values or none of them.
	SetMany(ctx context.Context, values map[string][]byte) error
}
