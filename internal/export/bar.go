package export

import "pricesync/pkg/market"

// Bar is the on-disk row shared by every export format.
type Bar struct {
	Date          string   `json:"date" msgpack:"date" parquet:"date"`
	Open          float64  `json:"open" msgpack:"open" parquet:"open"`
	High          float64  `json:"high" msgpack:"high" parquet:"high"`
	Low           float64  `json:"low" msgpack:"low" parquet:"low"`
	Close         float64  `json:"close" msgpack:"close" parquet:"close"`
	AdjustedClose *float64 `json:"adjustedClose,omitempty" msgpack:"adjustedClose,omitempty" parquet:"adjusted_close,optional"`
	Volume        int64    `json:"volume" msgpack:"volume" parquet:"volume"`
}

// FromPoints converts price points into export rows.
func FromPoints(points []market.PricePoint) []Bar {
	bars := make([]Bar, 0, len(points))
	for _, p := range points {
		bar := Bar{
			Date:   market.FormatDay(p.Date),
			Open:   p.Open.InexactFloat64(),
			High:   p.High.InexactFloat64(),
			Low:    p.Low.InexactFloat64(),
			Close:  p.Close.InexactFloat64(),
			Volume: p.Volume,
		}
		if p.AdjustedClose.Valid {
			v := p.AdjustedClose.Decimal.InexactFloat64()
			bar.AdjustedClose = &v
		}
		bars = append(bars, bar)
	}
	return bars
}
