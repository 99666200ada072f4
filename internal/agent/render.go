package agent

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tindale/reeve/internal/tools"
)

// renderBodyMax caps each tool's rendered body in the debug summary.
const renderBodyMax = 600

// RenderResults formats a batch of tool results for the user: one line
// per tool with a status icon, then an indented body. Shell results get
// stdout/stderr/exit code broken out instead of raw JSON.
func RenderResults(results []tools.Result) string {
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		icon := "✓"
		if !r.Success {
			icon = "✗"
		}
		fmt.Fprintf(&sb, "%s %s (%s)\n", icon, r.Call.Name, r.Elapsed.Round(10*time.Millisecond))

		body := r.Output
		if !r.Success {
			body = r.Error
		} else if isShellTool(r.Call.Name) {
			body = renderShell(r.Output)
		}
		body = clip(strings.TrimSpace(body), renderBodyMax)
		for _, line := range strings.Split(body, "\n") {
			sb.WriteString("  ")
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func isShellTool(name string) bool {
	return name == "shell_exec"
}

// renderShell unpacks the shell tool's JSON result into readable lines.
// Falls back to the raw output when it does not parse.
func renderShell(out string) string {
	var res struct {
		Stdout   string `json:"stdout"`
		Stderr   string `json:"stderr"`
		ExitCode int    `json:"exit_code"`
		TimedOut bool   `json:"timed_out"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		return out
	}

	var parts []string
	if res.Stdout != "" {
		parts = append(parts, res.Stdout)
	}
	if res.Stderr != "" {
		parts = append(parts, "stderr: "+res.Stderr)
	}
	if res.TimedOut {
		parts = append(parts, "(timed out)")
	}
	if res.ExitCode != 0 {
		parts = append(parts, fmt.Sprintf("exit code %d", res.ExitCode))
	}
	if len(parts) == 0 {
		return "(no output)"
	}
	return strings.Join(parts, "\n")
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
