// Package settings reads operational settings that an operator may change
// while the server is running. Values are fetched on every call, never
// cached: the reconciliation jobs must see a toggled setting on their next
// pass without a restart.
package settings

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// KeyMergePopulatedRecords gates whether additional-data reconciliation may
// fold populated, non-conflicting records into the canonical one, or only
// absorb fully blank duplicates.
const KeyMergePopulatedRecords = "merge.mergePopulatedRecords"

type Provider interface {
	MergePopulatedRecords(ctx context.Context) bool
}

// Static returns a fixed value. Used by the one-shot CLI paths and tests.
type Static struct {
	Merge bool
}

func (s Static) MergePopulatedRecords(context.Context) bool { return s.Merge }

// PGProvider reads settings rows, falling back to a configured default when
// the key is absent or unreadable.
type PGProvider struct {
	pool     *pgxpool.Pool
	fallback bool
}

func NewPGProvider(pool *pgxpool.Pool, fallback bool) *PGProvider {
	return &PGProvider{pool: pool, fallback: fallback}
}

func (p *PGProvider) MergePopulatedRecords(ctx context.Context) bool {
	var value string
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM settings WHERE key = $1 AND deleted_at IS NULL`,
		KeyMergePopulatedRecords).Scan(&value)
	if err != nil {
		return p.fallback
	}
	switch value {
	case "true", "t", "on", "1":
		return true
	case "false", "f", "off", "0":
		return false
	default:
		return p.fallback
	}
}
