package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/market_analyst.txt
	marketAnalystRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	MarketAnalyst string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		MarketAnalyst: strings.TrimSpace(marketAnalystRaw),
	}
}
