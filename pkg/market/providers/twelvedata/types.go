package twelvedata

// envelope is present on every Twelve Data response. Errors arrive with
// HTTP 200 and status "error".
type envelope struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// TimeSeriesResponse is the /time_series payload.
type TimeSeriesResponse struct {
	envelope
	Meta   TimeSeriesMeta    `json:"meta"`
	Values []TimeSeriesValue `json:"values"`
}

// TimeSeriesMeta describes the returned series.
type TimeSeriesMeta struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
	Currency string `json:"currency"`
	Exchange string `json:"exchange"`
	Type     string `json:"type"`
}

// TimeSeriesValue is one bar. Numbers are encoded as strings.
type TimeSeriesValue struct {
	Datetime string `json:"datetime"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume"`
}

// EarliestTimestampResponse is the /earliest_timestamp payload.
type EarliestTimestampResponse struct {
	envelope
	Datetime string `json:"datetime"`
	UnixTime int64  `json:"unix_time"`
}
