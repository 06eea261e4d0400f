package market

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	xerrors "github.com/sameermankotia/AptosAI/internal/errors"
	"github.com/sameermankotia/AptosAI/pkg/logger"
)

// TickerFeed keeps a websocket subscription to an exchange ticker stream
// and serves the last observed value per symbol. Fetch never blocks on
// the network; it returns whatever the background reader has cached.
type TickerFeed struct {
	url  string
	conn *websocket.Conn

	mu     sync.RWMutex
	latest map[string]tickerMessage
	closed bool
	done   chan struct{}
}

type tickerMessage struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
	Volume string `json:"volume"`
}

// NewTickerFeed dials the stream and starts the background reader. The
// caller owns the feed and must Close it.
func NewTickerFeed(ctx context.Context, streamURL string) (*TickerFeed, error) {
	if streamURL == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "ticker stream url is required")
	}
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, streamURL, nil)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeChainFailure, err, "dial ticker stream")
	}
	feed := &TickerFeed{
		url:    streamURL,
		conn:   conn,
		latest: make(map[string]tickerMessage),
		done:   make(chan struct{}),
	}
	go feed.readLoop()
	return feed, nil
}

func (f *TickerFeed) Name() string { return "ticker" }

func (f *TickerFeed) readLoop() {
	defer close(f.done)
	for {
		_, data, err := f.conn.ReadMessage()
		if err != nil {
			f.mu.Lock()
			closed := f.closed
			f.mu.Unlock()
			if !closed {
				logger.L().Warn("ticker stream closed", "url", f.url, "error", err)
			}
			return
		}
		var msg tickerMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Symbol == "" {
			continue
		}
		f.mu.Lock()
		f.latest[msg.Symbol] = msg
		f.mu.Unlock()
	}
}

// Fetch returns the cached last value for every symbol seen so far.
func (f *TickerFeed) Fetch(ctx context.Context) ([]Point, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, xerrors.New(xerrors.CodeChainFailure, "ticker feed is closed")
	}
	points := make([]Point, 0, len(f.latest)*2)
	for _, msg := range f.latest {
		if msg.Price != "" {
			points = append(points, Point{Source: f.Name(), Symbol: msg.Symbol, Kind: KindPrice, Value: msg.Price})
		}
		if msg.Volume != "" {
			points = append(points, Point{Source: f.Name(), Symbol: msg.Symbol, Kind: KindVolume, Value: msg.Volume})
		}
	}
	return points, nil
}

// Close tears down the subscription and waits for the reader to exit.
func (f *TickerFeed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()

	err := f.conn.Close()
	select {
	case <-f.done:
	case <-time.After(5 * time.Second):
	}
	return err
}
