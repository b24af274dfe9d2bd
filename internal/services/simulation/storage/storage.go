// Package storage defines persistence contracts for population runs.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested run is missing.
	ErrNotFound = errors.New("record not found")
)

// Run kinds.
const (
	KindCSGPopulation = "csg_pop"
	KindReformCSG     = "reform_csg"
)

// List limits.
const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

// Run is one weighted population aggregate.
type Run struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	CacheKey   string          `json:"cache_key"`
	Reform     json.RawMessage `json:"reform,omitempty"`
	Period     string          `json:"period"`
	Households int             `json:"households"`
	Total      float64         `json:"total"`
	CreatedAt  time.Time       `json:"created_at"`
}

// RunStore persists population runs.
type RunStore interface {
	LookupRun(ctx context.Context, cacheKey string) (Run, error)
	SaveRun(ctx context.Context, run Run) (Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// CacheKey identifies a run by everything its total depends on. reform must
// be canonical JSON (object keys sorted), as produced by json.Marshal on a map.
func CacheKey(kind, period string, reform json.RawMessage, dataset []byte) string {
	hash := sha256.New()
	for _, part := range [][]byte{[]byte(kind), []byte(period), reform, dataset} {
		var size [8]byte
		binary.LittleEndian.PutUint64(size[:], uint64(len(part)))
		hash.Write(size[:])
		hash.Write(part)
	}
	return hex.EncodeToString(hash.Sum(nil))
}

// ClampLimit bounds a list limit to [1, MaxListLimit]; zero or negative
// values use DefaultListLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
