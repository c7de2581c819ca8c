// Package model holds the durable data types the engine persists and
// exchanges with the venue: pairs, sides, execution kinds, fragments,
// orders, fulfillments, balance snapshots, and symbol filters.
package model

import (
	"fmt"

	"spotengine/internal/decimal"
)

// Pair is an ordered currency pair, e.g. (DOGE, BUSD).
type Pair struct {
	Base  string
	Quote string
}

// Symbol derives the venue symbol by concatenation, e.g. "DOGEBUSD".
func (p Pair) Symbol() string {
	return p.Base + p.Quote
}

func (p Pair) String() string {
	return p.Base + "/" + p.Quote
}

// Side is the direction of a fragment or order.
type Side int

const (
	Sell Side = iota
	Buy
)

func (s Side) String() string {
	switch s {
	case Sell:
		return "SELL"
	case Buy:
		return "BUY"
	default:
		return "UNKNOWN"
	}
}

// Reverse flips Sell<->Buy.
func (s Side) Reverse() Side {
	if s == Sell {
		return Buy
	}
	return Sell
}

// Execution is the order type requested at submission time.
type Execution int

const (
	Market Execution = iota
	Limit
	LimitFok
)

func (e Execution) String() string {
	switch e {
	case Market:
		return "MARKET"
	case Limit:
		return "LIMIT"
	case LimitFok:
		return "LIMIT_FOK"
	default:
		return "UNKNOWN"
	}
}

// Status is the Order lifecycle state: Inactive -> Sending -> Active ->
// Fulfilled, with a Cancelling branch off Active.
type Status int

const (
	Inactive Status = iota
	Sending
	Active
	Cancelling
	Fulfilled
)

func (s Status) String() string {
	switch s {
	case Inactive:
		return "Inactive"
	case Sending:
		return "Sending"
	case Active:
		return "Active"
	case Cancelling:
		return "Cancelling"
	case Fulfilled:
		return "Fulfilled"
	default:
		return "Unknown"
	}
}

// UnsetID marks a Fragment or Order that has not yet been assigned a primary
// key, or an Order that has been discarded from the store.
const UnsetID int64 = -1

// Fragment is the atomic unit of trading intent: a slice of base amount
// that wants to trade at targetRate, assignable to at most one Order over
// its lifetime.
type Fragment struct {
	ID            int64
	Base          string
	Quote         string
	BaseAmount    decimal.Decimal
	TargetRate    decimal.Decimal
	Side          Side
	TakenHome     decimal.Decimal
	SpawningOrder int64
	ComposedOrder int64
}

// Pair reconstructs the Pair this fragment trades.
func (f Fragment) Pair() Pair { return Pair{Base: f.Base, Quote: f.Quote} }

// IsInitial reports whether this fragment was seeded externally rather than
// spawned from a fulfilled order.
func (f Fragment) IsInitial() bool { return f.SpawningOrder == UnsetID }

// IsFree reports whether the fragment is not currently composing any order.
func (f Fragment) IsFree() bool { return f.ComposedOrder == UnsetID }

// Order is a batched submission of fragments sharing (base, quote, side,
// fragmentsRate).
type Order struct {
	ID             int64
	TraderName     string
	Base           string
	Quote          string
	Side           Side
	BaseAmount     decimal.Decimal
	FragmentsRate  decimal.Decimal
	ExecutionRate  decimal.Decimal
	ActivationTime int64
	FulfillTime    int64
	ExchangeID     int64
	Status         Status
	TakenHome      decimal.Decimal
	// Fee and FeeAsset are recorded on Fulfilled orders from the
	// underlying Fulfillment's accumulated commission.
	Fee      decimal.Decimal
	FeeAsset string
}

// Pair reconstructs the Pair this order trades.
func (o Order) Pair() Pair { return Pair{Base: o.Base, Quote: o.Quote} }

// ClientID derives the venue-facing client order id. Requires o.ID != UnsetID.
func (o Order) ClientID() string {
	if o.ID == UnsetID {
		panic("model: ClientID called on an order without a persisted id")
	}
	return fmt.Sprintf("%s-%d", o.TraderName, o.ID)
}

// AttemptClientID derives a per-attempt client id suffix, used so that a
// resubmitted market order never collides with a prior rejected attempt
// under the venue's unique-client-id constraint.
func (o Order) AttemptClientID(attempt int) string {
	if attempt <= 0 {
		return o.ClientID()
	}
	return fmt.Sprintf("%s-a%d", o.ClientID(), attempt)
}

// Fulfillment is the accumulated per-order execution total, built from one
// or more trade fills.
type Fulfillment struct {
	AmountBase   decimal.Decimal
	AmountQuote  decimal.Decimal
	Fee          decimal.Decimal
	FeeAsset     string
	LatestTrade  int64
	TradeCount   int
}

// Price is the derived average execution price, amountQuote/amountBase.
func (f Fulfillment) Price() decimal.Decimal {
	if f.AmountBase.IsZero() {
		return decimal.Zero
	}
	return f.AmountQuote.Div(f.AmountBase)
}

// Balance is a single calendar-day snapshot of account standing.
type Balance struct {
	ID                int64
	Time              int64
	BaseBalance       decimal.Decimal
	QuoteBalance      decimal.Decimal
	BaseBuyPotential  decimal.Decimal
	QuoteBuyPotential decimal.Decimal
	BaseSellPotential decimal.Decimal
	QuoteSellPotential decimal.Decimal
}

// PriceFilter is the venue-imposed price constraint for a symbol.
type PriceFilter struct {
	Min  decimal.Decimal
	Max  decimal.Decimal
	Tick decimal.Decimal
}

// AmountFilter is the venue-imposed quantity constraint for a symbol.
type AmountFilter struct {
	Min  decimal.Decimal
	Max  decimal.Decimal
	Tick decimal.Decimal
}

// SymbolFilters bundles every venue constraint relevant to order placement.
type SymbolFilters struct {
	Price           PriceFilter
	Amount          AmountFilter
	MinimumNotional decimal.Decimal
}
