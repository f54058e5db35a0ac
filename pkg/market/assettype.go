package market

import "strings"

var nameETFHints = []string{"etf", "trust", "fund", "spdr", "ishares", "vanguard", "invesco"}

var knownETFs = map[string]struct{}{
	"SPY": {}, "QQQ": {}, "VOO": {}, "VTI": {}, "IVV": {}, "IWM": {}, "EEM": {}, "VEA": {}, "VWO": {},
	"AGG": {}, "BND": {}, "TLT": {}, "GLD": {}, "SLV": {}, "USO": {}, "VNQ": {}, "XLF": {}, "XLK": {},
	"XLE": {}, "XLV": {}, "XLI": {}, "XLY": {}, "XLP": {}, "XLU": {}, "XLB": {}, "XLRE": {},
	"DIA": {}, "MDY": {}, "IJH": {}, "IJR": {}, "ARKK": {}, "ARKW": {}, "ARKG": {}, "ARKF": {},
	"SCHD": {}, "VYM": {}, "VIG": {}, "DGRO": {},
}

// InferAssetType guesses the asset class from the ticker and display name.
func InferAssetType(symbol, name string) AssetType {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return AssetStock
	}
	if strings.HasPrefix(sym, "^") {
		return AssetIndex
	}
	lower := strings.ToLower(name)
	for _, hint := range nameETFHints {
		if strings.Contains(lower, hint) {
			return AssetETF
		}
	}
	if _, ok := knownETFs[sym]; ok {
		return AssetETF
	}
	return AssetStock
}

// PlaceholderName is the display name given to symbols created by a sync.
func PlaceholderName(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol)) + " (Auto-imported)"
}

// NormalizeSymbols trims, upper-cases and de-duplicates symbols keeping order.
func NormalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}
