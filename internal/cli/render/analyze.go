package render

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/abiscan-org/abiscan/internal/domain"
	"github.com/abiscan-org/abiscan/internal/usecase"
)

// maxEventRows caps the rendered event table; the full list is persisted
const maxEventRows = 15

// AnalyzeRenderer renders contract analysis results
type AnalyzeRenderer struct {
	out  io.Writer
	json bool
}

// NewAnalyzeRenderer creates a new analyze renderer
func NewAnalyzeRenderer(out io.Writer, json bool) *AnalyzeRenderer {
	return &AnalyzeRenderer{out: out, json: json}
}

// RenderAnalyzeResult renders one analysis outcome
func (r *AnalyzeRenderer) RenderAnalyzeResult(result *usecase.AnalyzeResult) error {
	if r.json {
		return r.renderJSON(result)
	}

	res := result.Result

	color.New(color.Bold).Fprintf(r.out, "Contract %s on %s\n\n", res.Address, result.Chain)

	fmt.Fprintf(r.out, "  Status:      %s\n", r.statusLine(res))
	if res.Metadata != nil && res.Metadata.CompilerVersion != "" {
		fmt.Fprintf(r.out, "  Compiler:    %s\n", res.Metadata.CompilerVersion)
	}
	fmt.Fprintf(r.out, "  Deployment:  %s\n", r.deploymentLine(res.Deployment))
	if res.Proxy != nil && res.Proxy.Detection.IsProxy() {
		fmt.Fprintf(r.out, "  Proxy:       %s\n", r.proxyLine(res.Proxy))
	}
	if res.HasABI() {
		fmt.Fprintf(r.out, "  ABI:         %s\n", abiSummary(res.BestABI()))
	}
	if len(res.SourceFiles) > 0 {
		fmt.Fprintf(r.out, "  Sources:     %d file(s)\n", len(res.SourceFiles))
	}
	if result.Logs != nil {
		fmt.Fprintf(r.out, "  Logs:        %d entries fetched\n", len(result.Logs))
	}

	if res.Error != "" {
		color.New(color.FgRed).Fprintf(r.out, "\n  ✗ %s\n", res.Error)
	}

	if len(res.Events) > 0 {
		r.renderEventTable(res.Events)
	}

	if result.OutputDir != "" {
		fmt.Fprintf(r.out, "\nResults written to %s\n", result.OutputDir)
	}
	return nil
}

// renderJSON emits the machine-readable summary
func (r *AnalyzeRenderer) renderJSON(result *usecase.AnalyzeResult) error {
	doc := struct {
		*domain.VerificationResult
		Chain     string                  `json:"chain"`
		Events    []domain.EventSignature `json:"events,omitempty"`
		LogCount  *int                    `json:"logCount,omitempty"`
		OutputDir string                  `json:"outputDir,omitempty"`
	}{
		VerificationResult: result.Result,
		Chain:              result.Chain.Name,
		Events:             result.Result.Events,
		OutputDir:          result.OutputDir,
	}
	if result.Logs != nil {
		count := len(result.Logs)
		doc.LogCount = &count
	}

	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// statusLine colors the status and tags its source
func (r *AnalyzeRenderer) statusLine(res *domain.VerificationResult) string {
	var c *color.Color
	switch res.Status {
	case domain.StatusFull, domain.StatusVerified:
		c = color.New(color.FgGreen)
	case domain.StatusPartial:
		c = color.New(color.FgCyan)
	case domain.StatusUnverified:
		c = color.New(color.FgYellow)
	default:
		c = color.New(color.FgRed)
	}

	line := c.Sprintf("%s", res.Status)
	if res.Source != domain.SourceNone {
		line += fmt.Sprintf(" (%s)", cases.Title(language.English).String(string(res.Source)))
	}
	return line
}

func (r *AnalyzeRenderer) deploymentLine(dep domain.DeploymentInfo) string {
	if dep.Source == domain.DeploymentSourceUnknown {
		return color.New(color.Faint).Sprint("unknown")
	}
	line := ""
	if dep.BlockNumber > 0 {
		line += fmt.Sprintf("block %d", dep.BlockNumber)
	}
	if dep.TxHash != "" {
		if line != "" {
			line += ", "
		}
		line += "tx " + usecase.ShortAddress(dep.TxHash)
	}
	return fmt.Sprintf("%s (%s)", line, dep.Source)
}

func (r *AnalyzeRenderer) proxyLine(report *domain.ProxyReport) string {
	det := report.Detection
	switch det.Kind {
	case domain.ProxyConfirmed:
		line := fmt.Sprintf("confirmed → %s", det.Implementation)
		if report.ImplementationVerified {
			line += color.New(color.FgGreen).Sprint(" (implementation verified)")
		} else {
			line += color.New(color.FgYellow).Sprintf(" (implementation unverified: %s)", report.Reason)
		}
		return line
	case domain.ProxyHeuristic:
		return color.New(color.FgYellow).Sprintf("suspected (%s)", det.Reason)
	default:
		return "no"
	}
}

// abiSummary counts entries by kind, e.g. "42 functions, 7 events, 1 error"
func abiSummary(entries domain.ABI) string {
	counts := lo.CountValuesBy(entries, func(e domain.ABIEntry) string { return e.Type })

	var parts []string
	for _, kind := range []string{"function", "event", "error", "constructor"} {
		if n := counts[kind]; n > 0 {
			label := kind
			if n != 1 {
				label += "s"
			}
			parts = append(parts, fmt.Sprintf("%d %s", n, label))
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%d entries", len(entries))
	}

	summary := parts[0]
	for _, p := range parts[1:] {
		summary += ", " + p
	}
	return summary
}

// renderEventTable shows the derived event signatures
func (r *AnalyzeRenderer) renderEventTable(events []domain.EventSignature) {
	fmt.Fprintln(r.out)
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Event", "Signature", "Topic"})

	shown := events
	if len(shown) > maxEventRows {
		shown = shown[:maxEventRows]
	}
	for _, ev := range shown {
		t.AppendRow(table.Row{ev.Name, ev.Signature, usecase.ShortAddress(ev.Hash)})
	}
	t.Render()

	if len(events) > maxEventRows {
		color.New(color.Faint).Fprintf(r.out, "… %d more in events.json\n", len(events)-maxEventRows)
	}
}
