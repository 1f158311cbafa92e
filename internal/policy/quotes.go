package policy

import (
	_ "embed"

	"gopkg.in/yaml.v3"
)

//go:embed quotes.yaml
var quotesData []byte

// fallbackQuote is shown if the embedded catalog fails to parse.
const fallbackQuote = "Focus on what matters."

// Quotes serves motivational quotes for the block page.
type Quotes struct {
	quotes []string
}

// NewQuotes loads the embedded quote catalog. A broken catalog degrades
// to a single fallback quote rather than failing startup.
func NewQuotes() *Quotes {
	var doc struct {
		Quotes []string `yaml:"quotes"`
	}
	if err := yaml.Unmarshal(quotesData, &doc); err != nil || len(doc.Quotes) == 0 {
		return &Quotes{quotes: []string{fallbackQuote}}
	}
	return &Quotes{quotes: doc.Quotes}
}

// Pick returns a quote deterministically for the given seed (e.g. total
// attempt count), cycling through the catalog.
func (q *Quotes) Pick(seed int) string {
	if seed < 0 {
		seed = -seed
	}
	return q.quotes[seed%len(q.quotes)]
}
