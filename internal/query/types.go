package query

// PoolResponse is one pool's state for API queries.
type PoolResponse struct {
	Protocol string `json:"protocol"`
	UTxO     string `json:"utxo"`
	UnitA    string `json:"unit_a"`
	UnitB    string `json:"unit_b"`
	ReserveA int64  `json:"reserve_a"`
	ReserveB int64  `json:"reserve_b"`
	FeeBasis int64  `json:"fee_basis"`
	FeeNumA  int64  `json:"fee_num_a"`
	FeeNumB  int64  `json:"fee_num_b"`
	Active   bool   `json:"active"`
}

// OrderResponse is one open order for API queries. Price is the asked
// units per offered unit as an exact fraction.
type OrderResponse struct {
	Protocol  string `json:"protocol"`
	UTxO      string `json:"utxo"`
	Kind      string `json:"kind"`
	InUnit    string `json:"in_unit"`
	InAmount  int64  `json:"in_amount"`
	OutUnit   string `json:"out_unit"`
	Price     string `json:"price,omitempty"`
	StartTime int64  `json:"start_time,omitempty"`
	EndTime   int64  `json:"end_time,omitempty"`
	Active    bool   `json:"active"`
}

// BookLevel is one priced order on a book side.
type BookLevel struct {
	UTxO   string `json:"utxo"`
	Price  string `json:"price"`
	Amount int64  `json:"amount"`
}

// BookResponse is an aggregated order book for one pair.
type BookResponse struct {
	Protocol string      `json:"protocol"`
	UnitA    string      `json:"unit_a"`
	UnitB    string      `json:"unit_b"`
	Sell     []BookLevel `json:"sell"`
	Buy      []BookLevel `json:"buy"`
	MidBInA  string      `json:"mid_b_in_a,omitempty"`
	MidAInB  string      `json:"mid_a_in_b,omitempty"`
}

// QuoteResponse is a priced trade leg. Exactly one of InAmount and
// OutAmount echoes the request; the other carries the computed value.
type QuoteResponse struct {
	Protocol   string  `json:"protocol"`
	UTxO       string  `json:"utxo,omitempty"`
	InUnit     string  `json:"in_unit"`
	InAmount   int64   `json:"in_amount"`
	OutUnit    string  `json:"out_unit"`
	OutAmount  int64   `json:"out_amount"`
	Slippage   float64 `json:"slippage,omitempty"`
	BatcherFee int64   `json:"batcher_fee,omitempty"`
	Deposit    int64   `json:"deposit,omitempty"`

	// Pool reserves after the quoted swap settles. Omitted for order
	// book quotes.
	NextReserveA int64 `json:"next_reserve_a,omitempty"`
	NextReserveB int64 `json:"next_reserve_b,omitempty"`
}

// ChainTip reports the most recent block the backend has seen, for
// freshness checks.
type ChainTip struct {
	BlockNo int64 `json:"block_no"`
	SlotNo  int64 `json:"slot_no"`
	TxCount int64 `json:"tx_count"`
	Time    int64 `json:"time"`
}
