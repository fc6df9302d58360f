// Package symbols maintains the mapping between the venue's rotating numeric
// asset identifiers and the library's stable internal names.
//
// The venue addresses assets by position in its universe arrays. Positions are
// not stable across listings, and a ticker can be reused by several distinct
// listings, so the venue symbol alone is not a usable identifier. The registry
// derives a collision-free internal name "<base>-<PERP|SPOT>-<index>" for every
// listing and serves translation in both directions. Lookups that miss fail
// open to their input: an asset listed after the last refresh must degrade to
// pass-through, never break a call.
package symbols

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"hyperwire/pkg/core"
)

// MarketClass distinguishes perpetual and spot listings.
type MarketClass int

const (
	// ClassAny leaves the market class unconstrained.
	ClassAny MarketClass = iota - 1
	// ClassPerp marks a perpetual listing.
	ClassPerp
	// ClassSpot marks a spot listing.
	ClassSpot
)

// String returns the internal-name marker for the class.
func (c MarketClass) String() string {
	switch c {
	case ClassPerp:
		return "PERP"
	case ClassSpot:
		return "SPOT"
	default:
		return "ANY"
	}
}

// SpotIndexOffset keeps spot asset indices disjoint from perpetual ones within
// a single mapping table. Perpetual indices are always below it, spot indices
// at or above it, by construction.
const SpotIndexOffset = 10000

// snapshot is one immutable generation of the mapping tables. Both directions
// are rebuilt together and replaced as a unit, so readers never observe one
// table updated and the other stale.
type snapshot struct {
	// exchangeToInternal maps "<venueSymbol>-<universeIndex>" to internal name.
	exchangeToInternal map[string]string
	// internalToIndex maps internal name to the offset asset index.
	internalToIndex map[string]int
	// perpSymbols and spotSymbols map a bare venue symbol to its internal name
	// for embedded translation, which has no index at hand. Tickers naming more
	// than one live listing in the same class are left out: embedded lookups
	// for them fail open rather than guess.
	perpSymbols map[string]string
	spotSymbols map[string]string
}

// Registry owns the symbol mapping for one client instance. Refresh replaces
// the snapshot atomically; all read paths are pure reads against the current
// snapshot and need no locking. Safe for concurrent use.
type Registry struct {
	source   MetaSource
	interval time.Duration
	logger   zerolog.Logger

	snap atomic.Pointer[snapshot]

	readyCh   chan struct{}
	readyOnce sync.Once
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// New creates an empty Registry that reloads from source every interval once
// Start is called. The registry serves identity translation until the first
// successful Refresh.
func New(source MetaSource, interval time.Duration) *Registry {
	return &Registry{
		source:   source,
		interval: interval,
		logger:   zerolog.Nop(),
		readyCh:  make(chan struct{}),
		stopCh:   make(chan struct{}),
	}
}

// SetLogger replaces the registry's logger.
func (r *Registry) SetLogger(logger zerolog.Logger) {
	r.logger = logger
}

// Refresh fetches perpetual and spot universe metadata concurrently, rebuilds
// both mapping tables from scratch and swaps them in. On any fetch, parse or
// integrity failure the previous snapshot stays authoritative and the error is
// returned; callers never observe a partially rebuilt registry.
func (r *Registry) Refresh(ctx context.Context) error {
	var (
		perp    *PerpMeta
		spot    *SpotMeta
		perpErr error
		spotErr error
		wg      sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		perp, perpErr = r.source.PerpMeta(ctx)
	}()
	go func() {
		defer wg.Done()
		spot, spotErr = r.source.SpotMeta(ctx)
	}()
	wg.Wait()

	if perpErr != nil {
		return fmt.Errorf("fetch perp metadata: %w", perpErr)
	}
	if spotErr != nil {
		return fmt.Errorf("fetch spot metadata: %w", spotErr)
	}

	snap, err := buildSnapshot(perp, spot)
	if err != nil {
		return err
	}

	r.snap.Store(snap)
	r.readyOnce.Do(func() { close(r.readyCh) })

	r.logger.Debug().
		Int("listings", len(snap.exchangeToInternal)).
		Msg("symbol registry refreshed")
	return nil
}

func buildSnapshot(perp *PerpMeta, spot *SpotMeta) (*snapshot, error) {
	snap := &snapshot{
		exchangeToInternal: make(map[string]string, len(perp.Universe)+len(spot.Universe)),
		internalToIndex:    make(map[string]int, len(perp.Universe)+len(spot.Universe)),
		perpSymbols:        make(map[string]string, len(perp.Universe)),
		spotSymbols:        make(map[string]string, len(spot.Universe)),
	}
	perpDupes := make(map[string]struct{})
	spotDupes := make(map[string]struct{})

	for i, listing := range perp.Universe {
		internal := listing.Name + "-PERP-" + strconv.Itoa(i)
		key := compositeKey(listing.Name, i)
		if err := snap.insert(key, internal, i); err != nil {
			return nil, err
		}
		recordSymbol(snap.perpSymbols, perpDupes, listing.Name, internal)
	}

	for i, pair := range spot.Universe {
		if len(pair.Tokens) == 0 {
			return nil, fmt.Errorf("spot pair %q: missing token references", pair.Name)
		}
		base := pair.Tokens[0]
		if base < 0 || base >= len(spot.Tokens) {
			return nil, fmt.Errorf("spot pair %q: base token %d out of range", pair.Name, base)
		}
		internal := spot.Tokens[base].Name + "-SPOT-" + strconv.Itoa(i)
		key := compositeKey(pair.Name, i)
		if err := snap.insert(key, internal, SpotIndexOffset+i); err != nil {
			return nil, err
		}
		recordSymbol(snap.spotSymbols, spotDupes, pair.Name, internal)
	}

	return snap, nil
}

func (s *snapshot) insert(key, internal string, index int) error {
	if existing, ok := s.exchangeToInternal[key]; ok {
		return fmt.Errorf("%w: composite key %q maps to both %q and %q",
			core.ErrMappingCollision, key, existing, internal)
	}
	if _, ok := s.internalToIndex[internal]; ok {
		return fmt.Errorf("%w: internal name %q produced twice",
			core.ErrMappingCollision, internal)
	}
	s.exchangeToInternal[key] = internal
	s.internalToIndex[internal] = index
	return nil
}

func recordSymbol(symbols map[string]string, dupes map[string]struct{}, symbol, internal string) {
	if _, dup := dupes[symbol]; dup {
		return
	}
	if _, seen := symbols[symbol]; seen {
		delete(symbols, symbol)
		dupes[symbol] = struct{}{}
		return
	}
	symbols[symbol] = internal
}

func compositeKey(symbol string, index int) string {
	return symbol + "-" + strconv.Itoa(index)
}

// Resolve translates a venue symbol plus its universe index to the internal
// name. Unknown pairs return the symbol unchanged.
func (r *Registry) Resolve(symbol string, index int) string {
	snap := r.snap.Load()
	if snap == nil {
		return symbol
	}
	if internal, ok := snap.exchangeToInternal[compositeKey(symbol, index)]; ok {
		return internal
	}
	return symbol
}

// Reverse translates an internal name back to the venue composite key by
// scanning the forward mapping. Unknown names return the input unchanged.
// The scan is linear; high-frequency reverse callers should keep their own
// inverted index.
func (r *Registry) Reverse(internal string) string {
	snap := r.snap.Load()
	if snap == nil {
		return internal
	}
	for key, name := range snap.exchangeToInternal {
		if name == internal {
			return key
		}
	}
	return internal
}

// AssetIndex returns the offset asset index for an internal name. Spot entries
// are always at or above SpotIndexOffset, perpetual entries below it.
func (r *Registry) AssetIndex(internal string) (int, bool) {
	snap := r.snap.Load()
	if snap == nil {
		return 0, false
	}
	index, ok := snap.internalToIndex[internal]
	return index, ok
}

// Classify derives the market class from an internal name's marker.
func (r *Registry) Classify(internal string) (MarketClass, bool) {
	switch {
	case strings.Contains(internal, "-PERP-"):
		return ClassPerp, true
	case strings.Contains(internal, "-SPOT-"):
		return ClassSpot, true
	default:
		return ClassAny, false
	}
}

// VenueSymbol translates an internal name back to the bare venue symbol used
// in request payloads, stripping the index suffix from the composite key.
// Unknown names return the input unchanged.
func (r *Registry) VenueSymbol(internal string) string {
	key := r.Reverse(internal)
	if key == internal {
		return internal
	}
	if cut := strings.LastIndex(key, "-"); cut > 0 {
		return key[:cut]
	}
	return key
}

// ResolveSymbol translates a bare venue symbol when no universe index is at
// hand, as in embedded payload fields and mid-price map keys. Ambiguous or
// unknown symbols fail open to the input.
func (r *Registry) ResolveSymbol(symbol string, forced MarketClass) string {
	snap := r.snap.Load()
	if snap == nil {
		return symbol
	}
	if forced == ClassPerp || forced == ClassAny {
		if internal, ok := snap.perpSymbols[symbol]; ok {
			return internal
		}
	}
	if forced == ClassSpot || forced == ClassAny {
		if internal, ok := snap.spotSymbols[symbol]; ok {
			return internal
		}
	}
	return symbol
}

// Ready reports whether at least one refresh has completed.
func (r *Registry) Ready() bool {
	select {
	case <-r.readyCh:
		return true
	default:
		return false
	}
}

// EnsureReady blocks until the first successful refresh has completed, the
// context is done, or the registry is closed.
func (r *Registry) EnsureReady(ctx context.Context) error {
	select {
	case <-r.readyCh:
		return nil
	case <-r.stopCh:
		return core.ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start launches the periodic background refresh. Refresh failures are logged
// and the previous snapshot stays live; they are never surfaced to in-flight
// requests.
func (r *Registry) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.stopCh:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), r.interval/2)
				if err := r.Refresh(ctx); err != nil {
					r.logger.Warn().Err(err).Msg("symbol registry refresh failed, keeping previous mapping")
				}
				cancel()
			}
		}
	}()
}

// Close stops the background refresh and unblocks EnsureReady waiters.
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}
