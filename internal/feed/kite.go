package feed

import (
	"context"
	"fmt"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"github.com/seenimoa/optionpulse/pkg/utils"
)

type kiteQuoter interface {
	GetLTP(instruments ...string) (kiteconnect.QuoteLTP, error)
}

// KiteLTP is an LTPSource backed by the Zerodha Kite quote API. Cache keys
// stay in Upstox instrument-key form and are translated per request.
type KiteLTP struct {
	client kiteQuoter
}

// NewKiteLTP creates a Kite LTP source from an API key and access token.
func NewKiteLTP(apiKey, accessToken string) *KiteLTP {
	kc := kiteconnect.New(apiKey)
	kc.SetAccessToken(accessToken)
	return &KiteLTP{client: kc}
}

// LTP implements LTPSource.
func (k *KiteLTP) LTP(ctx context.Context, keys []string) (map[string]float64, error) {
	byKite := make(map[string]string, len(keys))
	instruments := make([]string, 0, len(keys))
	for _, key := range keys {
		sym, ok := utils.SymbolForKey(key)
		if !ok {
			continue
		}
		ki := utils.ToKiteInstrument(sym)
		byKite[ki] = key
		instruments = append(instruments, ki)
	}
	if len(instruments) == 0 {
		return map[string]float64{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	quotes, err := k.client.GetLTP(instruments...)
	if err != nil {
		return nil, fmt.Errorf("kite ltp: %w", err)
	}
	out := make(map[string]float64, len(quotes))
	for ki, q := range quotes {
		if key, ok := byKite[ki]; ok && q.LastPrice > 0 {
			out[key] = q.LastPrice
		}
	}
	return out, nil
}
