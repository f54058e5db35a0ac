package yahoo

// ChartResponse is the /v8/finance/chart payload.
type ChartResponse struct {
	Chart struct {
		Result []ChartResult `json:"result"`
		Error  *ChartError   `json:"error"`
	} `json:"chart"`
}

// ChartError is set when the symbol is unknown or the request is rejected.
type ChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// ChartResult holds one symbol's series. Indicator arrays run parallel to
// Timestamp and may contain nulls for days without a print.
type ChartResult struct {
	Meta       ChartMeta  `json:"meta"`
	Timestamp  []int64    `json:"timestamp"`
	Indicators Indicators `json:"indicators"`
}

// ChartMeta describes the instrument.
type ChartMeta struct {
	Symbol         string `json:"symbol"`
	Currency       string `json:"currency"`
	ExchangeName   string `json:"exchangeName"`
	InstrumentType string `json:"instrumentType"`
	FirstTradeDate *int64 `json:"firstTradeDate"`
	GMTOffset      int64  `json:"gmtoffset"`
	Timezone       string `json:"exchangeTimezoneName"`
}

// Indicators groups the quote and adjusted close arrays.
type Indicators struct {
	Quote    []Quote    `json:"quote"`
	AdjClose []AdjClose `json:"adjclose"`
}

// Quote holds the OHLCV arrays.
type Quote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

// AdjClose holds adjusted closes.
type AdjClose struct {
	AdjClose []*float64 `json:"adjclose"`
}
