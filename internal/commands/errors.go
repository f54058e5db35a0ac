package commands

import "fmt"

type failedSymbolsError struct {
	count int
}

func (e *failedSymbolsError) Error() string {
	return fmt.Sprintf("%d symbol(s) failed", e.count)
}
