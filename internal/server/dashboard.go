package server

// DashboardHTML is the embedded single-page dashboard for Beacon.
// It connects via WebSocket and shows page errors and report snapshots
// as sessions send them.
const DashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Beacon Dashboard</title>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, monospace;
    background: #0d1117; color: #c9d1d9; padding: 20px;
  }
  h1 { color: #58a6ff; margin-bottom: 4px; font-size: 1.5em; }
  .subtitle { color: #8b949e; margin-bottom: 20px; font-size: 0.9em; }
  .status-bar {
    display: flex; gap: 20px; margin-bottom: 20px; padding: 12px 16px;
    background: #161b22; border: 1px solid #30363d; border-radius: 6px;
  }
  .status-item { display: flex; flex-direction: column; }
  .status-label { font-size: 0.75em; color: #8b949e; text-transform: uppercase; }
  .status-value { font-size: 1.1em; font-weight: 600; }
  .status-value.connected { color: #3fb950; }
  .status-value.disconnected { color: #f85149; }
  .stats {
    display: grid; grid-template-columns: repeat(auto-fit, minmax(150px, 1fr));
    gap: 12px; margin-bottom: 20px;
  }
  .stat-card {
    background: #161b22; border: 1px solid #30363d; border-radius: 6px;
    padding: 16px; text-align: center;
  }
  .stat-number { font-size: 2em; font-weight: 700; color: #d2a8ff; }
  .stat-label { font-size: 0.8em; color: #8b949e; margin-top: 4px; }
  .event-log {
    background: #161b22; border: 1px solid #30363d; border-radius: 6px;
    max-height: 500px; overflow-y: auto;
  }
  .event-header {
    padding: 12px 16px; border-bottom: 1px solid #30363d;
    font-weight: 600; color: #58a6ff; position: sticky; top: 0;
    background: #161b22;
  }
  .event-row {
    display: grid; grid-template-columns: 110px 90px 110px 1fr;
    padding: 8px 16px; border-bottom: 1px solid #21262d; font-size: 0.85em;
  }
  .badge { padding: 2px 8px; border-radius: 12px; font-size: 0.75em; font-weight: 600; }
  .badge.resource { background: #3b2e1a; color: #d29922; }
  .badge.script { background: #3d1f20; color: #f85149; }
  .badge.promise { background: #2a1f3d; color: #d2a8ff; }
  .muted { color: #8b949e; }
  .empty-state { text-align: center; padding: 60px 20px; color: #8b949e; }
</style>
</head>
<body>
<h1>Beacon Dashboard</h1>
<p class="subtitle">Live page errors and performance</p>

<div class="status-bar">
  <div class="status-item">
    <span class="status-label">Connection</span>
    <span class="status-value disconnected" id="conn-status">Disconnected</span>
  </div>
</div>

<div class="stats">
  <div class="stat-card"><div class="stat-number" id="stat-errors">0</div><div class="stat-label">Errors</div></div>
  <div class="stat-card"><div class="stat-number" id="stat-sessions">0</div><div class="stat-label">Sessions</div></div>
  <div class="stat-card"><div class="stat-number" id="stat-load">-</div><div class="stat-label">Last Load (ms)</div></div>
</div>

<div class="event-log">
  <div class="event-header">Live Errors</div>
  <div id="events">
    <div class="empty-state"><p>Waiting for page errors...</p></div>
  </div>
</div>

<script>
let errors = 0;
const sessions = new Set();
const eventsDiv = document.getElementById('events');
const MAX_EVENTS = 200;

function connect() {
  const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
  const ws = new WebSocket(proto + '//' + location.host + '/ws');
  const status = document.getElementById('conn-status');
  ws.onopen = () => { status.textContent = 'Connected'; status.className = 'status-value connected'; };
  ws.onclose = () => {
    status.textContent = 'Disconnected'; status.className = 'status-value disconnected';
    setTimeout(connect, 2000);
  };
  ws.onmessage = (e) => {
    const frame = JSON.parse(e.data);
    sessions.add(frame.session);
    document.getElementById('stat-sessions').textContent = sessions.size;
    if (frame.type === 'error') addError(frame);
    if (frame.type === 'report' && frame.report.performance) {
      document.getElementById('stat-load').textContent = frame.report.performance.load;
    }
  };
}

function addError(frame) {
  const empty = eventsDiv.querySelector('.empty-state');
  if (empty) empty.remove();
  document.getElementById('stat-errors').textContent = ++errors;

  const err = frame.error;
  const row = document.createElement('div');
  row.className = 'event-row';
  row.innerHTML =
    '<span class="muted">' + new Date(frame.time).toLocaleTimeString('en-US', {hour12: false}) + '</span>' +
    '<span><span class="badge ' + escHtml(err.kind || '') + '">' + escHtml(err.type || '-') + '</span></span>' +
    '<span class="muted">' + escHtml(frame.session.slice(0, 8)) + '</span>' +
    '<span>' + escHtml(err.msg || '') + (err.url ? ' <span class="muted">' + escHtml(err.url) + '</span>' : '') + '</span>';
  eventsDiv.insertBefore(row, eventsDiv.firstChild);
  while (eventsDiv.children.length > MAX_EVENTS) eventsDiv.removeChild(eventsDiv.lastChild);
}

function escHtml(s) {
  const d = document.createElement('div');
  d.textContent = s;
  return d.innerHTML;
}

connect();
</script>
</body>
</html>`
