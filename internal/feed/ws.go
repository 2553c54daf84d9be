package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/seenimoa/optionpulse/internal/logging"
)

const (
	wsReadTimeout = 45 * time.Second
	minBackoff    = time.Second
	maxBackoff    = 30 * time.Second
)

type subscribeFrame struct {
	GUID   string        `json:"guid"`
	Method string        `json:"method"`
	Data   subscribeData `json:"data"`
}

type subscribeData struct {
	Mode           string   `json:"mode"`
	InstrumentKeys []string `json:"instrumentKeys"`
}

type feedFrame struct {
	Feeds map[string]struct {
		LTPC *struct {
			LTP float64 `json:"ltp"`
		} `json:"ltpc"`
	} `json:"feeds"`
}

// WSFeed streams LTP updates from a JSON market-data websocket into the cache.
type WSFeed struct {
	url    string
	header http.Header
	keys   []string
	cache  *PriceCache
	dialer *websocket.Dialer
	now    func() time.Time
	log    zerolog.Logger

	mu        sync.Mutex
	connected bool
}

// NewWSFeed creates a websocket feed for the given instrument keys.
func NewWSFeed(url string, header http.Header, keys []string, cache *PriceCache) *WSFeed {
	return &WSFeed{
		url:    url,
		header: header,
		keys:   keys,
		cache:  cache,
		dialer: websocket.DefaultDialer,
		now:    time.Now,
		log:    logging.Component("feed.ws"),
	}
}

// Connected reports whether a stream is currently open.
func (f *WSFeed) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *WSFeed) setConnected(v bool) {
	f.mu.Lock()
	f.connected = v
	f.mu.Unlock()
}

// Run connects and reconnects with exponential backoff until ctx is cancelled.
func (f *WSFeed) Run(ctx context.Context) error {
	backoff := minBackoff
	for {
		start := f.now()
		err := f.session(ctx)
		f.setConnected(false)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// a session that lived a while resets the backoff
		if f.now().Sub(start) > maxBackoff {
			backoff = minBackoff
		}
		f.log.Warn().Err(err).Dur("retry_in", backoff).Msg("market feed disconnected")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = nextBackoff(backoff)
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// session runs one connection until it fails or ctx ends.
func (f *WSFeed) session(ctx context.Context) error {
	conn, _, err := f.dialer.DialContext(ctx, f.url, f.header)
	if err != nil {
		return fmt.Errorf("dial market feed: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	sub := subscribeFrame{
		GUID:   uuid.NewString(),
		Method: "sub",
		Data:   subscribeData{Mode: "ltpc", InstrumentKeys: f.keys},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	f.setConnected(true)
	f.log.Info().Int("instruments", len(f.keys)).Msg("market feed subscribed")

	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read market feed: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		if n := f.apply(msg); n == 0 {
			f.log.Debug().Int("bytes", len(msg)).Msg("frame without prices")
		}
	}
}

// apply decodes one frame into the cache and returns the number of prices stored.
func (f *WSFeed) apply(msg []byte) int {
	var frame feedFrame
	if err := json.Unmarshal(msg, &frame); err != nil {
		return 0
	}
	now := f.now()
	n := 0
	for key, fd := range frame.Feeds {
		if fd.LTPC == nil || fd.LTPC.LTP <= 0 {
			continue
		}
		f.cache.Set(key, fd.LTPC.LTP, now)
		n++
	}
	return n
}
