package hyperliquid

import "context"

// Signature is the r/s/v triple attached to a signed action.
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V int    `json:"v"`
}

// Signer produces signatures for authenticated venue actions. Implementations
// wrap a wallet or remote signing service; the library treats them as opaque.
// Signing may be randomized, so identical inputs need not produce identical
// signatures, but every action must carry a nonce the signer has never used
// before — the pipeline guarantees that ordering.
type Signer interface {
	// Sign signs the action body together with its nonce.
	Sign(ctx context.Context, action any, nonce int64) (Signature, error)
	// Address returns the signer's wallet address.
	Address() string
}

// signedAction is the authenticated request envelope posted to the venue.
type signedAction struct {
	Action       any       `json:"action"`
	Nonce        int64     `json:"nonce"`
	Signature    Signature `json:"signature"`
	VaultAddress string    `json:"vaultAddress,omitempty"`
}
