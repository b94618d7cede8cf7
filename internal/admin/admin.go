// Package admin mounts VRROP's operator-facing debug routes alongside a
// ServerCore's data-plane listener: tsweb.Debugger gates every route to
// localhost/Tailscale access, and a tailsql browser is mounted
// read-only over the session registry for ad-hoc inspection.
package admin

import (
	"html/template"
	"net/http"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/vrrop/vrrop/internal/sessiondb"
)

// Stats is a snapshot of live ServerCore state rendered by
// /debug/vrrop/stats. Fields are supplied by the caller's StatsFunc since
// admin does not import servercore (it only needs these counters).
type Stats struct {
	ImageSubscribers    int
	OdometrySubscribers int
	UDPClientCount      int
}

// StatsFunc returns a current Stats snapshot; called once per request to
// /debug/vrrop/stats.
type StatsFunc func() Stats

var sessionsTemplate = template.Must(template.New("sessions").Parse(`
<!DOCTYPE html>
<title>vrrop sessions</title>
<table border="1" cellpadding="4">
<tr><th>Session ID</th><th>Remote Addr</th><th>Connected At</th><th>Disconnected At</th><th>Reason</th></tr>
{{range .}}
<tr>
<td>{{.SessionID}}</td>
<td>{{.RemoteAddr}}</td>
<td>{{.ConnectedAt}}</td>
<td>{{if .DisconnectedAt}}{{.DisconnectedAt}}{{else}}(connected){{end}}</td>
<td>{{.DisconnectReason}}</td>
</tr>
{{end}}
</table>
`))

var statsTemplate = template.Must(template.New("stats").Parse(`
<!DOCTYPE html>
<title>vrrop stats</title>
<ul>
<li>Image subscribers: {{.ImageSubscribers}}</li>
<li>Odometry subscribers: {{.OdometrySubscribers}}</li>
<li>UDP clients: {{.UDPClientCount}}</li>
</ul>
`))

const recentSessionsLimit = 100

// AttachRoutes mounts the debug routes on mux: /debug/vrrop/sessions,
// /debug/vrrop/stats, and /debug/sql/ (a read-only tailsql browser over
// registry's database).
func AttachRoutes(mux *http.ServeMux, registry *sessiondb.Registry, stats StatsFunc) error {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("vrrop/sessions", "Recent ServerCore connect/disconnect history", func(w http.ResponseWriter, r *http.Request) {
		records, err := registry.RecentSessions(recentSessionsLimit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if err := sessionsTemplate.Execute(w, records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	debug.HandleFunc("vrrop/stats", "Current broadcast/UDP client counters", func(w http.ResponseWriter, r *http.Request) {
		if err := statsTemplate.Execute(w, stats()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	tsql, err := tailsql.NewServer(tailsql.Options{RoutePrefix: "/debug/sql/"})
	if err != nil {
		return err
	}
	tsql.SetDB("sqlite://sessions.db", registry.DB(), &tailsql.DBOptions{Label: "VRROP sessions"})
	debug.Handle("sql/", "Read-only SQL browser over the session registry", tsql.NewMux())

	return nil
}
