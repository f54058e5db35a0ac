package alphavantage

// DailyAdjustedResponse is the TIME_SERIES_DAILY_ADJUSTED payload. Error
// conditions arrive with HTTP 200 in one of the message fields.
type DailyAdjustedResponse struct {
	ErrorMessage string                `json:"Error Message"`
	Note         string                `json:"Note"`
	Information  string                `json:"Information"`
	MetaData     map[string]string     `json:"Meta Data"`
	TimeSeries   map[string]DailyEntry `json:"Time Series (Daily)"`
}

// DailyEntry holds one day keyed by the numbered field names Alpha Vantage uses.
type DailyEntry struct {
	Open          string `json:"1. open"`
	High          string `json:"2. high"`
	Low           string `json:"3. low"`
	Close         string `json:"4. close"`
	AdjustedClose string `json:"5. adjusted close"`
	Volume        string `json:"6. volume"`
}
