package api

import (
	"html/template"
	"net/http"
	"time"
)

var statusTmpl = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Webhook Status</title>
    <meta charset="utf-8">
    <style>
        body { font-family: monospace; background: #1e1e2e; color: #cdd6f4; padding: 2em; }
        h1 { color: #89b4fa; }
        table { border-collapse: collapse; }
        td { padding: 0.3em 1em 0.3em 0; }
        .ok { color: #a6e3a1; }
        .bad { color: #f38ba8; }
        .warn { color: #f9e2af; }
    </style>
</head>
<body>
    <h1>Webhook Status</h1>
    <table>
        <tr><td>Monitor</td><td class="{{if .Running}}ok{{else}}bad{{end}}">{{if .Running}}running{{else}}stopped{{end}}</td></tr>
        <tr><td>Desired URL</td><td>{{.DesiredURL}}</td></tr>
        <tr><td>Registered URL</td><td class="{{if .InSync}}ok{{else}}bad{{end}}">{{if .RegisteredURL}}{{.RegisteredURL}}{{else}}(none){{end}}</td></tr>
        <tr><td>Pending updates</td><td class="{{if .BacklogHigh}}warn{{else}}ok{{end}}">{{.PendingCount}}</td></tr>
        <tr><td>Last checked</td><td>{{.LastChecked}}</td></tr>
        {{if .LastError}}<tr><td>Last error</td><td class="bad">{{.LastError}}</td></tr>{{end}}
    </table>
    <p><a href="/bot/update-webhook" style="color:#89b4fa">Force re-registration</a></p>
</body>
</html>
`))

type statusPage struct {
	Running       bool
	DesiredURL    string
	RegisteredURL string
	InSync        bool
	PendingCount  int
	BacklogHigh   bool
	LastChecked   string
	LastError     string
}

func (s *Server) handleStatusPage(w http.ResponseWriter, r *http.Request) {
	st := s.supervisor.Status()

	page := statusPage{
		Running:       st.Running,
		DesiredURL:    st.DesiredURL,
		RegisteredURL: st.RegisteredURL,
		InSync:        st.RegisteredURL == st.DesiredURL,
		PendingCount:  st.PendingCount,
		BacklogHigh:   st.PendingCount > st.BacklogLimit,
		LastChecked:   "never",
		LastError:     st.LastError,
	}
	if !st.LastCheckedAt.IsZero() {
		page.LastChecked = st.LastCheckedAt.UTC().Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := statusTmpl.Execute(w, page); err != nil {
		s.log.Warn("status page render failed")
	}
}
