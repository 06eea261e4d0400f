package market

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sameermankotia/AptosAI/internal/chain"
	"github.com/sameermankotia/AptosAI/internal/dex"
	xerrors "github.com/sameermankotia/AptosAI/internal/errors"
)

// DepthSource reads pool reserves straight from on-chain resources. One
// depth point is emitted per pool side so the advisor can judge how much
// liquidity backs a pair on each protocol.
type DepthSource struct {
	client chain.Client
	pools  []dex.Pool
}

// NewDepthSource returns a source over the given pools.
func NewDepthSource(client chain.Client, pools []dex.Pool) (*DepthSource, error) {
	if client == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "depth source requires a chain client")
	}
	return &DepthSource{client: client, pools: pools}, nil
}

func (s *DepthSource) Name() string { return "depth" }

// poolReserves tolerates both reserve layouts seen on Aptos AMMs: nested
// {"value": "..."} coin containers and plain string fields.
type poolReserves struct {
	CoinXReserve json.RawMessage `json:"coin_x_reserve"`
	CoinYReserve json.RawMessage `json:"coin_y_reserve"`
	ReserveX     json.RawMessage `json:"reserve_x"`
	ReserveY     json.RawMessage `json:"reserve_y"`
}

func reserveValue(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain, true
	}
	var nested struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil && nested.Value != "" {
		return nested.Value, true
	}
	return "", false
}

// Fetch reads reserves for every configured pool.
func (s *DepthSource) Fetch(ctx context.Context) ([]Point, error) {
	points := make([]Point, 0, len(s.pools)*2)
	for _, pool := range s.pools {
		resource, err := s.client.GetResource(ctx, pool.Address, pool.ResourceType)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeChainFailure, err,
				fmt.Sprintf("read %s pool reserves", pool.Protocol))
		}
		var reserves poolReserves
		if err := json.Unmarshal(resource.Data, &reserves); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeChainFailure, err,
				fmt.Sprintf("decode %s pool reserves", pool.Protocol))
		}
		pair := pool.CoinX + "/" + pool.CoinY
		if x, ok := reserveValue(reserves.CoinXReserve); ok {
			points = append(points, Point{Source: s.Name(), Symbol: pair, Kind: KindDepth, Value: x})
		} else if x, ok := reserveValue(reserves.ReserveX); ok {
			points = append(points, Point{Source: s.Name(), Symbol: pair, Kind: KindDepth, Value: x})
		}
		if y, ok := reserveValue(reserves.CoinYReserve); ok {
			points = append(points, Point{Source: s.Name(), Symbol: pair, Kind: KindDepth, Value: y})
		} else if y, ok := reserveValue(reserves.ReserveY); ok {
			points = append(points, Point{Source: s.Name(), Symbol: pair, Kind: KindDepth, Value: y})
		}
	}
	return points, nil
}
