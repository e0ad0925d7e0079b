package health

import (
	"fmt"
)

// RenderDashboardHTML returns the HTML status page for GET /.
func RenderDashboardHTML(health CollectResult) string {
	avgTime := fmt.Sprint(health.Traffic.AvgResponseTime)
	lastReqMethod, lastReqPath := "-", "-"
	if m, ok := health.Traffic.LastRequest.(map[string]interface{}); ok {
		if v, ok := m["method"].(string); ok {
			lastReqMethod = v
		}
		if v, ok := m["path"].(string); ok {
			lastReqPath = v
		}
	}

	rows := ""
	for _, name := range []string{"database", "redis", "ledger"} {
		dep := health.Dependencies[name]
		ping := "-"
		if dep.PingMs != nil {
			ping = fmt.Sprintf("%d ms", *dep.PingMs)
		}
		rows += fmt.Sprintf(
			`<tr><td>%s</td><td class="dep-%s">%s</td><td>%s</td></tr>`,
			name, dep.Status, dep.Status, ping)
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Harbor · API Status</title>
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <style>
    :root { --ink: #10283c; --ok: #1b8a5a; --bad: #c0392b; --muted: #64748b; --bg: #f6f8fa; }
    body { background: var(--bg); color: var(--ink); font-family: system-ui, sans-serif; margin: 0; padding: 2rem; }
    .card { background: #fff; border-radius: 12px; padding: 1.5rem 2rem; max-width: 640px; margin: 0 auto 1rem; box-shadow: 0 1px 4px rgba(16,40,60,.08); }
    h1 { font-size: 1.3rem; margin: 0 0 .25rem; }
    .status-ok { color: var(--ok); font-weight: 700; }
    .status-issue { color: var(--bad); font-weight: 700; }
    table { width: 100%%; border-collapse: collapse; }
    td { padding: .4rem 0; border-bottom: 1px solid #eef1f4; }
    .dep-connected, .dep-reachable, .dep-embedded { color: var(--ok); }
    .dep-disconnected, .dep-error, .dep-unreachable { color: var(--bad); }
    .muted { color: var(--muted); font-size: .85rem; }
  </style>
</head>
<body>
  <div class="card">
    <h1>Harbor API</h1>
    <p>Status: <span class="status-%s">%s</span></p>
    <p class="muted">Uptime %ds · %s · %s</p>
  </div>
  <div class="card">
    <h2>Dependencies</h2>
    <table>%s</table>
  </div>
  <div class="card">
    <h2>Traffic</h2>
    <table>
      <tr><td>Total requests</td><td>%d</td></tr>
      <tr><td>Success rate</td><td>%s%%</td></tr>
      <tr><td>Avg response</td><td>%s ms</td></tr>
      <tr><td>Last request</td><td>%s %s</td></tr>
    </table>
  </div>
</body>
</html>`,
		health.Status, health.Status,
		health.Runtime.UptimeSeconds, health.Runtime.Platform, health.Runtime.GoVersion,
		rows,
		health.Traffic.TotalRequests, health.Traffic.SuccessRate, avgTime,
		lastReqMethod, lastReqPath)
}
