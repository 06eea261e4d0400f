package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	xerrors "github.com/sameermankotia/AptosAI/internal/errors"
)

// PriceSource polls a REST price endpoint for spot prices and 24h volume.
// The endpoint is expected to answer GET {base}?symbols=A,B with a JSON
// object keyed by symbol.
type PriceSource struct {
	baseURL    string
	symbols    []string
	httpClient *http.Client
}

// PriceConfig configures a PriceSource.
type PriceConfig struct {
	BaseURL string
	Symbols []string
	Timeout time.Duration
}

// NewPriceSource validates the config and returns a polling price source.
func NewPriceSource(cfg PriceConfig) (*PriceSource, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "price source base url is required")
	}
	if len(cfg.Symbols) == 0 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "price source needs at least one symbol")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PriceSource{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		symbols:    cfg.Symbols,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (s *PriceSource) Name() string { return "price" }

type priceEntry struct {
	Price     string `json:"price"`
	Volume24h string `json:"volume_24h"`
}

// Fetch requests the configured symbols in one round trip.
func (s *PriceSource) Fetch(ctx context.Context) ([]Point, error) {
	endpoint := s.baseURL + "?symbols=" + url.QueryEscape(strings.Join(s.symbols, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "build price request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeChainFailure, err, "fetch prices")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, xerrors.New(xerrors.CodeChainFailure,
			fmt.Sprintf("price endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var entries map[string]priceEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeChainFailure, err, "decode price response")
	}

	points := make([]Point, 0, len(s.symbols)*2)
	for _, sym := range s.symbols {
		entry, ok := entries[sym]
		if !ok {
			continue
		}
		if entry.Price != "" {
			points = append(points, Point{Source: s.Name(), Symbol: sym, Kind: KindPrice, Value: entry.Price})
		}
		if entry.Volume24h != "" {
			points = append(points, Point{Source: s.Name(), Symbol: sym, Kind: KindVolume, Value: entry.Volume24h})
		}
	}
	return points, nil
}
