package symbols

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
)

// PerpListing is one perpetual instrument in the venue's universe.
type PerpListing struct {
	// Name is the venue's short code, e.g. "BTC".
	Name string `json:"name"`
	// SzDecimals is the size precision reported by the venue.
	SzDecimals int `json:"szDecimals"`
	// MaxLeverage is the maximum leverage allowed for the listing.
	MaxLeverage int `json:"maxLeverage"`
}

// PerpMeta is the perpetual universe metadata.
type PerpMeta struct {
	Universe []PerpListing `json:"universe"`
}

// SpotToken is one token in the spot metadata's parallel token array.
type SpotToken struct {
	// Name is the token ticker, e.g. "PURR".
	Name string `json:"name"`
	// Index is the token's position in the token array.
	Index int `json:"index"`
}

// SpotPair is one spot trading pair. Tokens holds positions into the token
// array; the first entry names the base token.
type SpotPair struct {
	// Name is the venue's pair code, e.g. "PURR/USDC" or "@1".
	Name string `json:"name"`
	// Tokens are [base, quote] positions into the token array.
	Tokens []int `json:"tokens"`
	// Index is the pair's position in the spot universe.
	Index int `json:"index"`
}

// SpotMeta is the spot universe metadata.
type SpotMeta struct {
	Universe []SpotPair  `json:"universe"`
	Tokens   []SpotToken `json:"tokens"`
}

// MetaSource fetches the venue's universe metadata. The two fetches are
// independent and the registry issues them concurrently.
type MetaSource interface {
	PerpMeta(ctx context.Context) (*PerpMeta, error)
	SpotMeta(ctx context.Context) (*SpotMeta, error)
}

// ParsePerpMeta decodes a perpetual metadata response. The venue wraps the
// universe in a response array whose first element carries it; a bare object
// is accepted too.
func ParsePerpMeta(data []byte) (*PerpMeta, error) {
	var envelope []PerpMeta
	if err := sonic.Unmarshal(data, &envelope); err == nil {
		if len(envelope) == 0 {
			return nil, fmt.Errorf("perp meta: empty response array")
		}
		return &envelope[0], nil
	}

	var meta PerpMeta
	if err := sonic.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("perp meta: %w", err)
	}
	return &meta, nil
}

// ParseSpotMeta decodes a spot metadata response, accepting the same array
// envelope as ParsePerpMeta.
func ParseSpotMeta(data []byte) (*SpotMeta, error) {
	var envelope []SpotMeta
	if err := sonic.Unmarshal(data, &envelope); err == nil {
		if len(envelope) == 0 {
			return nil, fmt.Errorf("spot meta: empty response array")
		}
		return &envelope[0], nil
	}

	var meta SpotMeta
	if err := sonic.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("spot meta: %w", err)
	}
	return &meta, nil
}
