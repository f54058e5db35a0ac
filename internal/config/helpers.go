package config

import (
	"pricesync/pkg/market"
	"pricesync/pkg/syncjob"
)

// MustLoadMarket loads etc/market.yaml from the project root and panics on error.
// It isolates provider config so tests that only need adapters skip the
// Postgres and Redis sections.
func MustLoadMarket() *market.Config {
	return market.MustLoad()
}

// MustBuildChain loads the market config and builds the enabled providers in
// priority order.
func MustBuildChain() []market.Provider {
	chain, err := MustLoadMarket().BuildChain()
	if err != nil {
		panic(err)
	}
	return chain
}

// MustLoadSync loads etc/sync.yaml from the project root and panics on error.
func MustLoadSync() *syncjob.Config {
	return syncjob.MustLoad()
}
