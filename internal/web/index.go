package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexHTML))
}

// Plain overview of domain funds and member roles, rendered from the API.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Colony feed</title>
  <style>
    :root { --bg:#ffffff; --ink:#111111; --ink-soft:#9c9c9c; --panel:#f6f6f6; }
    body { margin:0; padding:2rem; background:var(--bg); color:var(--ink); font-family:'Space Mono','JetBrains Mono',monospace; }
    h1 { font-size:1.1rem; letter-spacing:.08em; text-transform:uppercase; }
    h2 { font-size:.9rem; margin-top:2rem; }
    table { border-collapse:collapse; width:100%; background:var(--panel); }
    th, td { text-align:left; padding:.4rem .6rem; border-bottom:1px solid rgba(0,0,0,.08); font-size:.8rem; }
    .meta { color:var(--ink-soft); font-size:.75rem; }
  </style>
</head>
<body>
  <h1>Colony feed</h1>
  <h2>Domain funds <span class="meta" id="funds-meta"></span></h2>
  <table id="funds"><thead><tr><th>Domain</th><th>Balances</th></tr></thead><tbody></tbody></table>
  <h2>Members <span class="meta" id="users-meta"></span></h2>
  <table id="users"><thead><tr><th>Address</th><th>Domain</th><th>Roles</th><th>Reputation</th></tr></thead><tbody></tbody></table>
  <script>
    function meta(res, id) {
      const ts = Number(res.headers.get('X-Snapshot-Timestamp'));
      const stale = res.headers.get('X-Snapshot-Stale') === 'true';
      document.getElementById(id).textContent = ts ? new Date(ts).toISOString() + (stale ? ' (stale)' : '') : '';
    }
    function row(cells) {
      const tr = document.createElement('tr');
      cells.forEach(text => { const td = document.createElement('td'); td.textContent = text; tr.appendChild(td); });
      return tr;
    }
    async function load() {
      const funds = await fetch('/api/domains');
      if (funds.ok) {
        meta(funds, 'funds-meta');
        const body = document.querySelector('#funds tbody');
        body.replaceChildren(...(await funds.json()).map(d =>
          row([d.domainName, d.funds.map(f => f.amount + ' ' + f.ticker).join(', ')])));
      }
      const users = await fetch('/api/users');
      if (users.ok) {
        meta(users, 'users-meta');
        const body = document.querySelector('#users tbody');
        const rows = [];
        (await users.json()).forEach(u => u.domains.forEach(d =>
          rows.push(row([u.address, d.domainName, d.roles || '-', d.reputation]))));
        body.replaceChildren(...rows);
      }
    }
    load();
    setInterval(load, 60000);
  </script>
</body>
</html>
`
