package common

import (
	"strings"
)

// Index is a tracked market benchmark.
// Symbol is in the configured provider's notation (e.g. "^GSPC" for Yahoo, "GSPC.INDX" for EODHD).
type Index struct {
	// Name is the display name (e.g. "S&P 500")
	Name string `toml:"name" validate:"required"`
	// Symbol is the provider symbol
	Symbol string `toml:"symbol" validate:"required"`
	// Region groups indices for regional averages (e.g. "India", "US")
	Region string `toml:"region"`
}

// String returns the symbol
func (i Index) String() string {
	return i.Symbol
}

// DefaultIndices returns the Indian and US benchmarks tracked when no [[indices]] are configured.
func DefaultIndices() []Index {
	return []Index{
		{Name: "Nifty 50", Symbol: "^NSEI", Region: "India"},
		{Name: "Sensex", Symbol: "^BSESN", Region: "India"},
		{Name: "Nifty Bank", Symbol: "^NSEBANK", Region: "India"},
		{Name: "Nifty Next 50", Symbol: "^NSMIDCP", Region: "India"},
		{Name: "S&P 500", Symbol: "^GSPC", Region: "US"},
		{Name: "Dow Jones", Symbol: "^DJI", Region: "US"},
		{Name: "Nasdaq Composite", Symbol: "^IXIC", Region: "US"},
		{Name: "Russell 2000", Symbol: "^RUT", Region: "US"},
		{Name: "Nasdaq 100", Symbol: "^NDX", Region: "US"},
	}
}

// ParseIndexList parses a comma-separated list of "SYMBOL" or "Name=SYMBOL" entries.
// Entries without a name use the symbol as display name. Region is left empty.
func ParseIndexList(s string) []Index {
	var indices []Index
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if name, symbol, ok := strings.Cut(part, "="); ok {
			indices = append(indices, Index{
				Name:   strings.TrimSpace(name),
				Symbol: strings.TrimSpace(symbol),
			})
			continue
		}
		indices = append(indices, Index{Name: part, Symbol: part})
	}
	return NormalizeIndices(indices)
}

// NormalizeIndices trims whitespace, fills missing names and drops duplicate symbols.
// Order is preserved; the first occurrence of a symbol wins.
func NormalizeIndices(indices []Index) []Index {
	seen := make(map[string]bool, len(indices))
	result := make([]Index, 0, len(indices))
	for _, idx := range indices {
		idx.Symbol = strings.TrimSpace(idx.Symbol)
		idx.Name = strings.TrimSpace(idx.Name)
		idx.Region = strings.TrimSpace(idx.Region)
		if idx.Symbol == "" {
			continue
		}
		key := strings.ToUpper(idx.Symbol)
		if seen[key] {
			continue
		}
		seen[key] = true
		if idx.Name == "" {
			idx.Name = idx.Symbol
		}
		result = append(result, idx)
	}
	return result
}
