package wire

// inboundEnvelope is used only to read the discriminating "type" field; the
// full payload is re-parsed into the concrete shape once the type is known.
type inboundEnvelope struct {
	Type string `json:"type"`
}

// mdMessage is a market-data update: one top-of-book entry per side.
type mdMessage struct {
	Type    string                  `json:"type"`
	Symbol  string                  `json:"symbol"`
	Entries map[string][]priceLevel `json:"entries"`
}

type priceLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// erMessage is an execution report.
type erMessage struct {
	Type      string  `json:"type"`
	Product   product `json:"product"`
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	LastPx    float64 `json:"lastPx"`
	Quantity  float64 `json:"quantity"`
	LastQty   float64 `json:"lastQty"`
	Status    string  `json:"status"`
	OrderID   string  `json:"orderId"`
	ClOrdID   string  `json:"clOrdId"`
}

type product struct {
	MarketID string `json:"marketId"`
	Symbol   string `json:"symbol"`
}

// subscribeMarketData subscribes to level-1 bid/offer updates.
type subscribeMarketData struct {
	Type    string   `json:"type"`
	Level   int      `json:"level"`
	Symbols []string `json:"symbols"`
	Entries []string `json:"entries"`
}

// subscribeReports subscribes to execution reports for the given accounts.
type subscribeReports struct {
	Type     string   `json:"type"`
	Accounts []string `json:"accounts"`
	All      bool     `json:"all"`
}

// newOrder places a limit or market order.
type newOrder struct {
	Type            string  `json:"type"`
	Product         product `json:"product"`
	Price           float64 `json:"price,omitempty"`
	Quantity        float64 `json:"quantity"`
	Side            string  `json:"side"`
	Account         string  `json:"account"`
	OrdType         string  `json:"ordType,omitempty"`
	TimeInForce     string  `json:"timeInForce"`
	Iceberg         bool    `json:"iceberg,omitempty"`
	DisplayQuantity float64 `json:"displayQuantity,omitempty"`
	Proprietary     string  `json:"proprietary"`
	ClOrdID         string  `json:"clOrdId"`
}
