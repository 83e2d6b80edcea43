package render

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/abiscan-org/abiscan/internal/domain"
	"github.com/abiscan-org/abiscan/internal/usecase"
)

// ChainsRenderer renders the chain registry listing
type ChainsRenderer struct {
	out  io.Writer
	json bool
}

// NewChainsRenderer creates a new chains renderer
func NewChainsRenderer(out io.Writer, json bool) *ChainsRenderer {
	return &ChainsRenderer{out: out, json: json}
}

// RenderChainList renders the configured chains
func (r *ChainsRenderer) RenderChainList(result *usecase.ChainListResult) error {
	if r.json {
		return r.renderJSON(result)
	}

	if len(result.Chains) == 0 {
		fmt.Fprintln(r.out, "No chains configured")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Name", "Explorer API", "API Key"})

	for _, chain := range result.Chains {
		name := chain.Name
		if result.Default != nil && chain.ID == result.Default.ID {
			name += " *"
		}
		keyCell := color.New(color.FgRed).Sprint("missing")
		if result.HasKey[chain.ID] {
			keyCell = color.New(color.FgGreen).Sprint("set")
		}
		t.AppendRow(table.Row{chain.ID, name, chain.ExplorerAPIURL, keyCell})
	}
	t.Render()

	if result.Default != nil {
		color.New(color.Faint).Fprintf(r.out, "* default chain (%s)\n", result.Default.Name)
	}
	return nil
}

func (r *ChainsRenderer) renderJSON(result *usecase.ChainListResult) error {
	type chainDoc struct {
		*domain.Chain
		HasAPIKey bool `json:"hasApiKey"`
		Default   bool `json:"default,omitempty"`
	}

	docs := make([]chainDoc, 0, len(result.Chains))
	for _, chain := range result.Chains {
		docs = append(docs, chainDoc{
			Chain:     chain,
			HasAPIKey: result.HasKey[chain.ID],
			Default:   result.Default != nil && chain.ID == result.Default.ID,
		})
	}

	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(docs)
}
