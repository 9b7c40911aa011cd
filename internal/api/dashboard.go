package api

import (
	"fmt"
	"html"
	"net/http"
	"sort"
)

// dashboardHandler serves a minimal status page listing every target and
// its current health, refreshed on each load (no client-side JS).
func (s *Server) dashboardHandler(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.cfg.Targets))
	for name := range s.cfg.Targets {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := ""
	for _, name := range names {
		tc := s.cfg.Targets[name]
		h := s.checker.GetStatus(name)
		rows += fmt.Sprintf(
			"<tr class=%q><td>%s</td><td>%s</td><td>%s</td><td>%d</td><td>%s</td></tr>\n",
			statusClass(h.Status.String()),
			html.EscapeString(name),
			html.EscapeString(tc.Addr()),
			html.EscapeString(h.Status.String()),
			h.ConsecutiveFailures,
			html.EscapeString(h.LastError),
		)
	}

	fmt.Fprintf(w, dashboardTemplate, rows)
}

func statusClass(status string) string {
	switch status {
	case "healthy":
		return "ok"
	case "unhealthy":
		return "bad"
	default:
		return "unknown"
	}
}

const dashboardTemplate = `<!DOCTYPE html>
<html>
<head>
<title>pgwire-check</title>
<style>
body { font-family: monospace; margin: 2rem; }
table { border-collapse: collapse; width: 100%%; }
td, th { border: 1px solid #ccc; padding: 0.4rem 0.8rem; text-align: left; }
tr.ok td:nth-child(3) { color: green; }
tr.bad td:nth-child(3) { color: #b00; font-weight: bold; }
tr.unknown td:nth-child(3) { color: #888; }
</style>
</head>
<body>
<h1>pgwire-check</h1>
<table>
<tr><th>target</th><th>addr</th><th>status</th><th>consecutive failures</th><th>last error</th></tr>
%s
</table>
</body>
</html>
`
