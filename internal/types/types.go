package types

import "pricesync/pkg/fallback"

type SyncRequest struct {
	Symbols       []string `json:"symbols"`
	Force         bool     `json:"force,optional"`
	ClearExisting bool     `json:"clearExisting,optional"`
}

type SyncAllRequest struct {
	YearsBack int `json:"yearsBack,optional,range=[0:100]"`
}

type PlanRequest struct {
	Symbols string `form:"symbols"` // comma separated
	Force   bool   `form:"force,optional"`
}

type PlanItem struct {
	Symbol   string   `json:"symbol"`
	Start    string   `json:"start,omitempty"`
	End      string   `json:"end,omitempty"`
	HasData  bool     `json:"hasData"`
	UpToDate bool     `json:"upToDate,omitempty"`
	Skipped  bool     `json:"skipped,omitempty"`
	Windows  []string `json:"windows"`
}

type PlanResponse struct {
	Plans []PlanItem `json:"plans"`
}

type CoverageRequest struct {
	Symbols string `form:"symbols,optional"` // comma separated, empty means all active
}

type CoverageItem struct {
	Symbol string `json:"symbol"`
	First  string `json:"first,omitempty"`
	Last   string `json:"last,omitempty"`
	Rows   int64  `json:"rows"`
}

type CoverageResponse struct {
	Symbols []CoverageItem `json:"symbols"`
}

type HealthResponse struct {
	Healthy   bool                      `json:"healthy"`
	Store     string                    `json:"store"`
	Providers []fallback.ProviderHealth `json:"providers"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
