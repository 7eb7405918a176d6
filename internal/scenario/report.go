package scenario

import (
	"fmt"
	"strings"
	"time"

	"solana-nft-lab/internal/solana"
)

// Result is the outcome of one scenario.
type Result struct {
	Name        string
	Description string
	Passed      bool
	Err         error
	Duration    time.Duration
	Spent       uint64 // lamports
}

// Report collects the results of one run.
type Report struct {
	GeneratedAt time.Time
	Duration    time.Duration
	Results     []Result
}

// Failed returns the number of failed scenarios.
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.Passed {
			n++
		}
	}
	return n
}

// OK reports whether every scenario passed.
func (r *Report) OK() bool { return r.Failed() == 0 }

// TotalSpent sums lamports spent over all scenarios.
func (r *Report) TotalSpent() uint64 {
	var total uint64
	for _, res := range r.Results {
		total += res.Spent
	}
	return total
}

func status(passed bool) string {
	if passed {
		return "PASS"
	}
	return "FAIL"
}

// RenderMarkdown renders the report as Markdown.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Scenario Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Scenarios: %d | Passed: %d | Failed: %d | Spent: %s SOL | Duration: %s\n\n",
		len(r.Results), len(r.Results)-r.Failed(), r.Failed(),
		solana.LamportsToSOL(r.TotalSpent()).String(), r.Duration.Round(time.Millisecond)))

	sb.WriteString("| Scenario | Status | Duration | Spent (SOL) |\n")
	sb.WriteString("|----------|--------|----------|-------------|\n")
	for _, res := range r.Results {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
			res.Name, status(res.Passed), res.Duration.Round(time.Millisecond),
			solana.LamportsToSOL(res.Spent).String()))
	}
	sb.WriteString("\n")

	if r.Failed() > 0 {
		sb.WriteString("## Failures\n\n")
		for _, res := range r.Results {
			if res.Passed {
				continue
			}
			sb.WriteString(fmt.Sprintf("- **%s**: %s\n", res.Name, res.Err))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// RenderCSV renders one row per scenario.
func RenderCSV(r *Report) string {
	var sb strings.Builder

	sb.WriteString("scenario,status,duration_ms,spent_lamports,spent_sol,error\n")
	for _, res := range r.Results {
		errText := ""
		if res.Err != nil {
			errText = strings.ReplaceAll(res.Err.Error(), `"`, `""`)
		}
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%d,%s,\"%s\"\n",
			res.Name,
			status(res.Passed),
			res.Duration.Milliseconds(),
			res.Spent,
			solana.LamportsToSOL(res.Spent).String(),
			errText,
		))
	}

	return sb.String()
}
