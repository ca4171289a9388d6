package report

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/ternarybob/marketbrief/internal/models"
)

// EmptyMessage is shown in place of the table when no index could be analyzed.
const EmptyMessage = "No market data was available for this run."

// Title heads the brief
const Title = "Daily Market Brief"

// narrative returns the prose section of the brief as markdown.
func narrative(report *models.Report) string {
	var b strings.Builder
	ins := report.Insights

	if report.IsEmpty() {
		b.WriteString(EmptyMessage + "\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Global markets closed with a **%s** tone. The average move across %d %s was **%s**, with %d advancing, %d declining and %d unchanged.\n\n",
		ins.Sentiment, ins.Total, plural(ins.Total, "index", "indices"),
		formatPercent(ins.AveragePercent), ins.Advancers, ins.Decliners, ins.Unchanged)

	for _, r := range ins.Regions {
		fmt.Fprintf(&b, "- **%s** averaged %s across %d %s.\n",
			escapeMarkdown(r.Region), formatPercent(r.AveragePercent), r.Count, plural(r.Count, "index", "indices"))
	}
	if len(ins.Regions) > 0 {
		b.WriteString("\n")
	}

	if ins.Best != nil && ins.Worst != nil && ins.Total > 1 {
		fmt.Fprintf(&b, "**%s** led the session at %s, while **%s** was the weakest at %s.\n",
			escapeMarkdown(ins.Best.Name), formatPercent(ins.Best.PercentChange),
			escapeMarkdown(ins.Worst.Name), formatPercent(ins.Worst.PercentChange))
	}

	return b.String()
}

// failuresMarkdown lists omitted indices, or "" when there are none.
func failuresMarkdown(failures []models.SymbolFailure) string {
	if len(failures) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Not included in this brief:\n\n")
	for _, f := range failures {
		name := f.Name
		if name == "" || name == f.Symbol {
			name = f.Symbol
		} else {
			name = fmt.Sprintf("%s (%s)", f.Name, f.Symbol)
		}
		fmt.Fprintf(&b, "- %s: %s failed\n", escapeMarkdown(name), f.Stage)
	}
	return b.String()
}

// tableMarkdown renders summaries as a GFM table.
func tableMarkdown(summaries []models.PerformanceSummary) string {
	var b strings.Builder
	b.WriteString("| Index | Close | Change | % Change | As of |\n")
	b.WriteString("|---|---:|---:|---:|---|\n")
	for _, s := range summaries {
		asOf := ""
		if !s.AsOf.IsZero() {
			asOf = s.AsOf.Format("02 Jan")
		}
		if s.Stale {
			asOf += " (stale)"
		}
		fmt.Fprintf(&b, "| %s %s | %s | %s | %s | %s |\n",
			s.Direction.Arrow(), escapeMarkdown(s.Name),
			formatNumber(s.Close), formatSigned(s.Change), formatPercent(s.PercentChange), strings.TrimSpace(asOf))
	}
	return b.String()
}

// Markdown renders the whole brief as one markdown document.
func Markdown(report *models.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", Title)
	fmt.Fprintf(&b, "_%s_\n\n", report.GeneratedAt.Format("Monday, 02 January 2006"))
	b.WriteString(narrative(report))
	if !report.IsEmpty() {
		b.WriteString("\n## Performance\n\n")
		b.WriteString(tableMarkdown(report.Summaries))
	}
	if f := failuresMarkdown(report.Failures); f != "" {
		b.WriteString("\n")
		b.WriteString(f)
	}
	return b.String()
}

// formatPercent renders +1.23% / -1.23% / 0.00%
func formatPercent(p decimal.Decimal) string {
	return formatSigned(p) + "%"
}

// formatSigned renders a 2dp value with an explicit plus sign for gains
func formatSigned(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + formatNumber(d)
	}
	return formatNumber(d)
}

// formatNumber renders d to 2dp with thousands separators
func formatNumber(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + b.String() + "." + frac
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	`|`, `\|`,
	`*`, `\*`,
	`_`, `\_`,
	"`", "\\`",
	`[`, `\[`,
	`]`, `\]`,
)

// escapeMarkdown escapes characters that would change inline formatting or break a table cell
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
