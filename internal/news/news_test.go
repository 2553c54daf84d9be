package news

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/optionpulse/internal/config"
)

const rssBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Markets Desk</title>
  <link>https://example.com</link>
  <item>
    <title>Nifty 50 ends higher as banks rally</title>
    <link>https://example.com/a</link>
    <description><![CDATA[<p>Benchmarks <b>gained</b> today.</p>]]></description>
    <pubDate>Thu, 19 Feb 2026 10:00:00 +0530</pubDate>
  </item>
  <item>
    <title>Sensex slips in late trade</title>
    <link>https://example.com/b</link>
    <description>Profit booking.</description>
    <pubDate>Thu, 19 Feb 2026 11:00:00 +0530</pubDate>
  </item>
  <item>
    <title>Bank Nifty hits record</title>
    <link>https://example.com/c</link>
    <description>Lenders lead.</description>
    <pubDate>Thu, 19 Feb 2026 09:00:00 +0530</pubDate>
  </item>
</channel>
</rss>`

func newServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssBody)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestMarketSortedNewestFirst(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	r := NewReader(config.NewsConfig{Feeds: []string{srv.URL}, CacheTTLSec: 60})

	articles, err := r.Market(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, articles, 3)
	assert.Equal(t, "Sensex slips in late trade", articles[0].Title)
	assert.Equal(t, "Bank Nifty hits record", articles[2].Title)
	assert.Equal(t, "Markets Desk", articles[0].Source)
	assert.Equal(t, "Benchmarks gained today.", articles[1].Summary)

	assert.Less(t, articles[0].Sentiment, 0.0, "slips on profit booking")
	assert.Greater(t, articles[1].Sentiment, 0.0, "ends higher as banks rally")
	assert.Zero(t, articles[2].Sentiment)
}

func TestMarketIsCached(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	r := NewReader(config.NewsConfig{Feeds: []string{srv.URL}, CacheTTLSec: 60})

	_, err := r.Market(context.Background(), 0)
	require.NoError(t, err)
	_, err = r.Market(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestHeadlinesFiltersBySymbol(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	r := NewReader(config.NewsConfig{Feeds: []string{srv.URL}, CacheTTLSec: 60})

	got := r.Headlines(context.Background(), "SENSEX", 2)
	require.Len(t, got, 1)
	assert.Equal(t, "📰 Sensex slips in late trade (Markets Desk) 🔴", got[0])

	got = r.Headlines(context.Background(), "BANKNIFTY", 5)
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "Bank Nifty hits record")

	assert.Empty(t, r.Headlines(context.Background(), "NIFTY", 0))
}

func TestHeadlinesAddNewsTone(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	r := NewReader(config.NewsConfig{Feeds: []string{srv.URL}, CacheTTLSec: 60})

	// two Nifty headlines plus the tone line
	got := r.Headlines(context.Background(), "NIFTY", 5)
	require.Len(t, got, 3)
	assert.Contains(t, got[0], "banks rally")
	assert.True(t, strings.HasSuffix(got[0], "🟢"))
	assert.Equal(t, "📰 Bank Nifty hits record (Markets Desk)", got[1])
	assert.Equal(t, "🧭 News tone: Bullish (+1.00)", got[2])
}

func TestAllFeedsFailing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	r := NewReader(config.NewsConfig{Feeds: []string{srv.URL}})
	_, err := r.Market(context.Background(), 0)
	assert.Error(t, err)
	assert.Nil(t, r.Headlines(context.Background(), "NIFTY", 2))
}

func TestCleanHTML(t *testing.T) {
	assert.Equal(t, "", cleanHTML(""))
	assert.Equal(t, "Hello world", cleanHTML("<p>Hello <i>world</i></p>"))
}

func TestSourceName(t *testing.T) {
	assert.Equal(t, "ET Markets", sourceName(" ET Markets ", "https://x"))
	assert.Equal(t, "livemint.com", sourceName("", "https://www.livemint.com/rss/markets"))
}

func TestSymbolKeywords(t *testing.T) {
	assert.Equal(t, []string{"sbin", "sbi", "state bank"}, symbolKeywords("sbin"))
	assert.Equal(t, []string{"xyz"}, symbolKeywords("XYZ"))
}
