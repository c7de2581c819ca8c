// Package store provides durable, transactional persistence of
// Orders, Fragments and Balance snapshots, plus the query helpers the
// Trader composes into its order-lifecycle operations.
package store

import (
	"spotengine/internal/decimal"
	"spotengine/internal/model"
)

// Store is the persistence capability the Trader depends on. It also
// satisfies spawner.OrderLookup.
type Store interface {
	InsertOrder(order *model.Order) error
	InsertFragment(fragment *model.Fragment) error
	UpdateOrder(order model.Order) error
	UpdateFragment(fragment model.Fragment) error

	// GetOrder and GetFragment fail with apperrors.ErrNotFound if the id is
	// absent.
	GetOrder(id int64) (model.Order, error)
	GetFragment(id int64) (model.Fragment, error)

	// ReloadOrder and ReloadFragment re-read by id, overwriting the
	// in-memory copy.
	ReloadOrder(order *model.Order) error
	ReloadFragment(fragment *model.Fragment) error

	// Unassociated returns fragments matching (side, targetRate, pair) with
	// composedOrder == model.UnsetID.
	Unassociated(side model.Side, targetRate decimal.Decimal, pair model.Pair) ([]model.Fragment, error)

	// SellRatesAbove and BuyRatesBelow return the distinct target rates
	// among free matching fragments, sorted ascending.
	SellRatesAbove(limit decimal.Decimal, pair model.Pair) ([]decimal.Decimal, error)
	BuyRatesBelow(limit decimal.Decimal, pair model.Pair) ([]decimal.Decimal, error)

	// FragmentsComposing returns the fragments whose composedOrder is
	// order.ID.
	FragmentsComposing(order model.Order) ([]model.Fragment, error)

	// SelectOrders returns every order of pair in the given status.
	SelectOrders(pair model.Pair, status model.Status) ([]model.Order, error)

	// AssignAvailableFragments sets composedOrder = order.ID on every free
	// fragment matching (order.FragmentsRate, order.Side, order.Base,
	// order.Quote).
	AssignAvailableFragments(order model.Order) error

	// SumFragmentsOfOrder sums baseAmount across the fragments composing
	// order; fails Internal if there are none.
	SumFragmentsOfOrder(order model.Order) (decimal.Decimal, error)

	// PrepareOrder is a composite helper run inside a single transaction:
	// insert a new Inactive order, assign available fragments, set
	// baseAmount from their sum, persist. If nothing matched, the
	// returned order has baseAmount == 0 — callers must treat that as
	// "nothing to do".
	PrepareOrder(traderName string, side model.Side, rate decimal.Decimal, pair model.Pair) (model.Order, error)

	// DiscardOrder frees composing fragments, deletes the order row, and
	// sets order.ID = model.UnsetID.
	DiscardOrder(order *model.Order) error

	// OnFillOrder writes fulfillment fields and status = Fulfilled. It is
	// idempotent: returns true on first application, false if the order
	// was already Fulfilled.
	OnFillOrder(order model.Order) (bool, error)

	// InsertBalance persists a new daily Balance snapshot and returns its id.
	InsertBalance(balance model.Balance) (int64, error)

	// LatestBalance returns the most recent Balance snapshot, or nil if none
	// exists yet.
	LatestBalance() (*model.Balance, error)

	// ListBalances returns every persisted Balance snapshot, oldest first.
	ListBalances() ([]model.Balance, error)

	// IncrementLaunchCount bumps and returns the process launch counter,
	// used to distinguish cold starts from reconnect-driven restarts in
	// operational logging.
	IncrementLaunchCount() (int64, error)

	Close() error
}
