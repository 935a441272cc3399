// Package venue defines the external REST/WebSocket contract, the signing
// oracle abstraction, and the supporting nonce/rate-limit/session
// infrastructure. The wire byte format and the oracle's cryptographic
// internals live outside this process; this package only fixes the typed
// contract surface components upstream depend on.
package venue

import "time"

// Side is the order side on the venue's wire contract.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType mirrors the two types the REST contract accepts.
type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

type TimeInForce string

const (
	TIFGoodTillCancel    TimeInForce = "GTC"
	TIFImmediateOrCancel TimeInForce = "IOC"
)

// ChainID is the signing domain.
type ChainID string

const (
	ChainMainnet ChainID = "SN_MAIN"
	ChainSepolia ChainID = "SN_SEPOLIA"
)

// OrderFields is everything the signing oracle needs and everything the
// REST POST /orders body carries alongside the signature.
type OrderFields struct {
	Market           string
	Side             Side
	Type             OrderType
	Price            float64
	Qty              float64
	TimeInForce      TimeInForce
	ReduceOnly       bool
	Nonce            uint64
	ClientOrderID    string
	FeeRate          float64
	ExpirySec        int64
	Chain            ChainID
	VaultID          string
	StarkPublicKey   string
	SyntheticAmount  int64 // scaled integer per collateral/synthetic resolution
	CollateralAmount int64
}

// Signature is the oracle's opaque (r, s) output. Its fields are never
// logged, and nothing upstream of the oracle call introspects this struct.
type Signature struct {
	R, S string
}

// PlaceResult is what the REST client returns for a successful POST /orders.
type PlaceResult struct {
	OrderID string
	Ts      time.Time
}

// BestBidAsk is the abstract GET /orderbook/{m} response shape used by
// BackupPoller.
type BestBidAsk struct {
	Bid, Ask float64
	Ts       time.Time
}

// MarketConfig is the abstract GET /markets/{m}/config response.
type MarketConfig struct {
	TickSize      float64
	SizeIncrement float64
	MinNotional   float64
	TakerFeeRate  float64
}

// Balance is the abstract GET /balance response.
type Balance struct {
	EquityUSD float64 `json:"equity_usd"`
}

// Position is the abstract GET /positions response for one market.
type Position struct {
	Market string
	Size   float64 // signed, base units
	Entry  float64
}

// OrderEvent is the union of authenticated account.orders stream events
// FillHandler consumes.
type OrderEvent struct {
	OrderID       string
	ClientOrderID string
	Side          Side
	Status        OrderStatus
	FilledQty     float64
	RemainingQty  float64
	Price         float64
	Reason        string // set on Rejected
}

// OpenOrder is one row of the abstract GET /orders?status=open response,
// used by ordermgr's Reconciler to diff local LiveOrders against venue
// truth independent of the fast replace loop.
type OpenOrder struct {
	OrderID       string
	ClientOrderID string
	Market        string
	Side          Side
	Price         float64
	Size          float64
	PlacedTs      time.Time
}

type OrderStatus string

const (
	OrderStatusNew      OrderStatus = "NEW"
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusPartial  OrderStatus = "PARTIALLY_FILLED"
	OrderStatusCanceled OrderStatus = "CANCELED"
	OrderStatusRejected OrderStatus = "REJECTED"
	OrderStatusExpired  OrderStatus = "EXPIRED"
)
