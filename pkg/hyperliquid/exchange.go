package hyperliquid

import (
	"context"

	"hyperwire/pkg/core"
)

// Exchange is the authenticated venue client. It extends Client with the
// trading surface; every action is signed with the configured Signer before
// dispatch.
type Exchange struct {
	*Client
	signer Signer
}

// NewExchange creates an authenticated client. The signer is required; use
// NewClient for the public query surface.
func NewExchange(config *core.Config, signer Signer, opts ...Option) (*Exchange, error) {
	if signer == nil {
		return nil, core.ErrNoSigner
	}

	client, err := NewClient(config, opts...)
	if err != nil {
		return nil, err
	}
	client.pipeline.setSigner(signer)

	return &Exchange{Client: client, signer: signer}, nil
}

// Address returns the signer's account address.
func (e *Exchange) Address() string {
	return e.signer.Address()
}

// assetIndex resolves an internal listing name to the venue's asset id.
func (e *Exchange) assetIndex(ctx context.Context, coin string) (int, error) {
	if err := e.EnsureReady(ctx); err != nil {
		return 0, err
	}
	index, ok := e.registry.AssetIndex(coin)
	if !ok {
		return 0, core.NewVenueError(core.ErrorTypeBadRequest, "unknown listing "+coin)
	}
	return index, nil
}

// sendAction signs and dispatches a trading action.
func (e *Exchange) sendAction(ctx context.Context, action core.Params) (any, error) {
	return e.send(ctx, core.NewRequest("/exchange").
		SetBody(action).
		SetWeight(weightAction).
		SetRequireAuth(true))
}

// PlaceOrder submits a limit order built from an OrderRequest. The listing is
// addressed by internal name and resolved to the venue asset id.
func (e *Exchange) PlaceOrder(ctx context.Context, order *OrderRequest) (any, error) {
	if err := validateOrder(order); err != nil {
		return nil, core.NewVenueError(core.ErrorTypeBadRequest, err.Error())
	}

	index, err := e.assetIndex(ctx, order.Coin)
	if err != nil {
		return nil, err
	}

	wire := wireOrder{
		Asset:      index,
		IsBuy:      order.Side == core.SideBuy,
		Price:      order.Price.Text('f'),
		Size:       order.Size.Text('f'),
		ReduceOnly: order.ReduceOnly,
		Type:       wireOrderType{Limit: wireLimitType{Tif: string(order.TimeInForce)}},
		Cloid:      order.Cloid,
	}

	return e.sendAction(ctx, core.Params{
		"type":     "order",
		"orders":   []wireOrder{wire},
		"grouping": "na",
	})
}

// CancelOrder cancels a resting order by venue order id.
func (e *Exchange) CancelOrder(ctx context.Context, coin string, oid int64) (any, error) {
	index, err := e.assetIndex(ctx, coin)
	if err != nil {
		return nil, err
	}

	return e.sendAction(ctx, core.Params{
		"type": "cancel",
		"cancels": []core.Params{
			{"a": index, "o": oid},
		},
	})
}

// CancelByCloid cancels a resting order by client-assigned identifier.
func (e *Exchange) CancelByCloid(ctx context.Context, coin, cloid string) (any, error) {
	index, err := e.assetIndex(ctx, coin)
	if err != nil {
		return nil, err
	}

	return e.sendAction(ctx, core.Params{
		"type": "cancelByCloid",
		"cancels": []core.Params{
			{"asset": index, "cloid": cloid},
		},
	})
}

// UpdateLeverage changes the leverage for a perpetual listing.
func (e *Exchange) UpdateLeverage(ctx context.Context, coin string, leverage int, isCross bool) (any, error) {
	index, err := e.assetIndex(ctx, coin)
	if err != nil {
		return nil, err
	}

	return e.sendAction(ctx, core.Params{
		"type":     "updateLeverage",
		"asset":    index,
		"isCross":  isCross,
		"leverage": leverage,
	})
}

// Withdraw requests a withdrawal to the given address. The amount is a
// decimal string in the collateral currency.
func (e *Exchange) Withdraw(ctx context.Context, destination, amount string) (any, error) {
	return e.sendAction(ctx, core.Params{
		"type":        "withdraw3",
		"destination": destination,
		"amount":      amount,
	})
}
