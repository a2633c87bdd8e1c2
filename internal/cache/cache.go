// Package cache mirrors account snapshots into Redis for fast lookups.
//
// The cache is a best-effort sink: it is overwritten on every mutation of
// the owning account and is safe to lose, a missing entry is repaired by
// the next mutation or by a fallback read of the ledger.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/finledger/backend/internal/models"
)

// Snapshot is the denormalized projection of an account stored in the
// cache. It has no identity of its own and is rebuilt on every refresh.
type Snapshot struct {
	AccountID    uint64          `json:"accountId"`
	Name         string          `json:"name"`
	TotalIncome  decimal.Decimal `json:"totalIncome"`
	TotalExpense decimal.Decimal `json:"totalExpense"`
}

// SnapshotOf projects an account into its cache representation.
func SnapshotOf(account models.Account) Snapshot {
	return Snapshot{
		AccountID:    account.ID,
		Name:         account.Name,
		TotalIncome:  account.TotalIncome,
		TotalExpense: account.TotalExpense,
	}
}

// Key returns the cache key for an account of a user.
func Key(userID, accountID uint64) string {
	return fmt.Sprintf("login_user:%d:account:%d", userID, accountID)
}

// Cache writes account snapshots to Redis.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New returns a cache writing through the passed client. A ttl of 0
// stores snapshots without expiry.
func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{
		client: client,
		ttl:    ttl,
	}
}

// Refresh computes the snapshot from the current account state and
// unconditionally overwrites the cache entry.
func (c *Cache) Refresh(ctx context.Context, account models.Account) error {
	snapshot := SnapshotOf(account)

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshalling account snapshot: %w", err)
	}

	err = c.client.Set(ctx, Key(account.UserID, account.ID), payload, c.ttl).Err()
	if err != nil {
		return fmt.Errorf("writing account snapshot: %w", err)
	}

	return nil
}
