// Package market collects price, volume and liquidity-depth observations
// from heterogeneous sources and folds them into a single snapshot that
// the trading loop hands to the advisor.
package market

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// Point kinds.
const (
	KindPrice  = "price"
	KindVolume = "volume"
	KindDepth  = "depth"
)

// Point is a single market observation.
type Point struct {
	Source string `json:"source"`
	Symbol string `json:"symbol"`
	Kind   string `json:"kind"`
	Value  string `json:"value"`
}

// Snapshot is the merged output of one gathering round.
type Snapshot struct {
	GatheredAt time.Time `json:"gathered_at"`
	Points     []Point   `json:"points"`
}

// Source produces market observations. Implementations must be safe for
// concurrent use because Gather fans out across all sources at once.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]Point, error)
}

// Gather fetches every source concurrently and merges the results. A
// failure in any source fails the whole round; the trading loop treats a
// failed round as a skipped cycle rather than trading on partial data.
func Gather(ctx context.Context, sources ...Source) (*Snapshot, error) {
	results := make([][]Point, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			points, err := src.Fetch(gctx)
			if err != nil {
				return err
			}
			results[i] = points
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &Snapshot{GatheredAt: time.Now().UTC()}
	for _, points := range results {
		snap.Points = append(snap.Points, points...)
	}
	return snap, nil
}

// PriceOf returns the first price point for symbol, if any.
func (s *Snapshot) PriceOf(symbol string) (string, bool) {
	for _, p := range s.Points {
		if p.Kind == KindPrice && p.Symbol == symbol {
			return p.Value, true
		}
	}
	return "", false
}

// Symbols lists the distinct symbols present in the snapshot, sorted.
func (s *Snapshot) Symbols() []string {
	seen := make(map[string]struct{})
	for _, p := range s.Points {
		seen[p.Symbol] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
