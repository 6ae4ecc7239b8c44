package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/madhatter5501/WorkOS/kanban"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

var trendSymbols = map[kanban.Trend]string{
	kanban.TrendUp:      "↑",
	kanban.TrendDown:    "↓",
	kanban.TrendNeutral: "→",
}

// Markdown renders a report as a Markdown document.
func Markdown(item kanban.AnalysisHistoryItem) string {
	var b strings.Builder

	b.WriteString("# Rapport Oracle Navigator\n\n")
	if at, err := time.Parse(time.RFC3339, item.Date); err == nil {
		fmt.Fprintf(&b, "_Généré le %s_\n\n", at.Local().Format("02/01/2006 15:04"))
	}

	if len(item.KPIs) > 0 {
		b.WriteString("| Indicateur | Valeur | Tendance |\n|---|---|---|\n")
		for _, kpi := range item.KPIs {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", cell(kpi.Label), cell(kpi.Value), trendSymbols[kpi.Trend])
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## État des lieux\n\n%s\n\n", item.Summary)
	writeList(&b, "Risques", item.Risks)
	writeList(&b, "Prochaines étapes", item.NextSteps)

	if len(item.ChartData) > 0 {
		b.WriteString("## Avancement\n\n| Tâche | Responsable | Progression |\n|---|---|---|\n")
		for _, p := range item.ChartData {
			fmt.Fprintf(&b, "| %s | %s | %.0f%% |\n", cell(p.Name), cell(p.Assignee), p.Progress)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RenderHTML renders a report as an HTML fragment. Raw HTML in AI text is not passed through.
func RenderHTML(item kanban.AnalysisHistoryItem) ([]byte, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(Markdown(item)), &buf); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return buf.Bytes(), nil
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
	b.WriteString("\n")
}

// cell keeps AI text from breaking table rows.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
