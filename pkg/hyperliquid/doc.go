// Package hyperliquid is a client for the Hyperliquid exchange.
//
// The package provides two entry points. Client covers the public query
// surface (metadata, prices, books, candles, user state) and the websocket
// market-data streams. Exchange extends Client with the signed trading
// surface (orders, cancels, leverage, withdrawals) and requires a Signer.
//
// All listings are addressed by internal names of the form
// "<base>-<PERP|SPOT>-<index>", translated to and from venue symbols by a
// background-refreshed registry. Translation fails open: unknown symbols pass
// through unchanged. Every method has a Raw counterpart that speaks venue
// identifiers directly and skips the registry entirely.
//
// Requests flow through a shared pipeline that signs authenticated actions,
// charges a weighted rate limit, and dispatches over REST or, once ConnectWS
// has been called, over correlated websocket post requests. Venue rejections
// and transport failures surface as *core.VenueError with a stable type
// taxonomy.
package hyperliquid
