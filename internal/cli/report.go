package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/coral-mesh/injector/internal/attacher"
)

type outputFormat string

const (
	outputText outputFormat = "text"
	outputJSON outputFormat = "json"
)

func parseOutputFormat(s string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(s)); f {
	case outputText, outputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (valid: text, json)", s)
	}
}

// Report is the outcome of one run as printed on stdout.
type Report struct {
	SessionID     string `json:"session_id"`
	Target        string `json:"target"`
	Module        string `json:"module"`
	Loaded        bool   `json:"loaded"`
	DetachWarning string `json:"detach_warning,omitempty"`
}

func newReport(sessionID string, result *attacher.Result) Report {
	r := Report{
		SessionID: sessionID,
		Target:    result.TargetID,
		Module:    result.ModulePath,
		Loaded:    result.Loaded,
	}
	if result.DetachErr != nil {
		r.DetachWarning = result.DetachErr.Error()
	}
	return r
}

func writeReport(w io.Writer, format outputFormat, r Report) error {
	if format == outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	renderer := lipgloss.NewRenderer(w)
	okStyle := renderer.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	warnStyle := renderer.NewStyle().Foreground(lipgloss.Color("11"))
	labelStyle := renderer.NewStyle().Foreground(lipgloss.Color("241")).Width(9)

	var b strings.Builder
	b.WriteString(okStyle.Render("✓ Module loaded"))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("target") + r.Target + "\n")
	b.WriteString(labelStyle.Render("module") + r.Module + "\n")
	b.WriteString(labelStyle.Render("session") + r.SessionID + "\n")
	if r.DetachWarning != "" {
		b.WriteString(warnStyle.Render("⚠ "+r.DetachWarning) + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
