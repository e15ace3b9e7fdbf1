package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"
)

// ReportFormat is one of the three formats generate_report accepts.
type ReportFormat string

const (
	ReportMarkdown ReportFormat = "markdown"
	ReportJSON     ReportFormat = "json"
	ReportHTML     ReportFormat = "html"
)

// ReportRef is what GenerateReport returns: where the artifact was
// written and the A_CTX report key derived from its timestamp.
type ReportRef struct {
	Path      string
	MemoryKey string
}

var htmlReportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.AgentName}} report</title></head>
<body>
<h1>{{.AgentName}} — {{.ReportType}}</h1>
<p>Generated: {{.GeneratedAt}}</p>
<pre>{{.Body}}</pre>
</body>
</html>
`))

type htmlReportData struct {
	AgentName   string
	ReportType  string
	GeneratedAt string
	Body        string
}

// GenerateReport renders result as format and writes it to
// {reportsDir}/{AgentName}/{timestamp}/report.{md,json,html}, returning the
// path and the A_CTX key "{agentName}:report:{now.Unix()}", the key shape
// BaseAgent.persist uses. GenerateReport itself writes nothing to MemoryHub,
// so that key names an entry only if persist wrote one in the same second.
// reportsDir is the configured reports root (config.OrchestratorConfig.ReportsDir).
func GenerateReport(reportsDir, agentName, reportType string, result AgentResult, format ReportFormat, now time.Time) (ReportRef, error) {
	if format == "" {
		format = ReportMarkdown
	}

	dir := filepath.Join(reportsDir, agentName, now.UTC().Format("20060102T150405Z"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ReportRef{}, fmt.Errorf("contract: create report dir: %w", err)
	}

	var (
		body []byte
		ext  string
		err  error
	)
	switch format {
	case ReportJSON:
		body, err = json.MarshalIndent(result.Data, "", "  ")
		ext = "json"
	case ReportHTML:
		var buf bytes.Buffer
		terr := htmlReportTemplate.Execute(&buf, htmlReportData{
			AgentName:   agentName,
			ReportType:  reportType,
			GeneratedAt: now.UTC().Format(time.RFC3339),
			Body:        renderMarkdownBody(result),
		})
		body, err, ext = buf.Bytes(), terr, "html"
	default:
		body = []byte(renderMarkdownReport(agentName, reportType, result, now))
		ext = "md"
	}
	if err != nil {
		return ReportRef{}, fmt.Errorf("contract: render %s report: %w", format, err)
	}

	path := filepath.Join(dir, "report."+ext)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return ReportRef{}, fmt.Errorf("contract: write report: %w", err)
	}

	return ReportRef{
		Path:      path,
		MemoryKey: fmt.Sprintf("%s:report:%d", agentName, now.Unix()),
	}, nil
}

func renderMarkdownReport(agentName, reportType string, result AgentResult, now time.Time) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s — %s\n\n", agentName, reportType)
	fmt.Fprintf(&buf, "_Generated: %s_\n\n", now.UTC().Format(time.RFC3339))
	buf.WriteString(renderMarkdownBody(result))
	return buf.String()
}

func renderMarkdownBody(result AgentResult) string {
	body, err := json.MarshalIndent(result.Data, "", "  ")
	if err != nil {
		return result.Error
	}
	var buf bytes.Buffer
	buf.WriteString("```json\n")
	buf.Write(body)
	buf.WriteString("\n```\n")
	return buf.String()
}
