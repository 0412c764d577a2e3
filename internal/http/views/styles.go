package views

// Detail panels are hidden until the URL fragment names them, so opening and
// closing one never leaves the page.
const layoutStyles = `
body{font-family:system-ui,-apple-system,"Segoe UI",sans-serif;margin:0;background:#f5f6f8;color:#1f2328}
nav.navbar{display:flex;align-items:center;gap:1.5rem;padding:.75rem 1.5rem;background:#0f6cbd;color:#fff}
nav.navbar a{color:#fff;text-decoration:none}
nav.navbar a[aria-current=page]{font-weight:600;text-decoration:underline}
nav.navbar .brand{font-weight:700;margin-right:auto}
nav.navbar form{margin:0}
main.container{max-width:1200px;margin:0 auto;padding:1.5rem}
.stats-grid{display:grid;grid-template-columns:repeat(auto-fit,minmax(220px,1fr));gap:1rem}
.stat-card{display:block;background:#fff;border-radius:8px;padding:1rem;color:inherit;text-decoration:none;box-shadow:0 1px 2px rgba(0,0,0,.08)}
.stat-value{font-size:2rem;font-weight:700;margin:.25rem 0}
table{width:100%;border-collapse:collapse;background:#fff}
th,td{text-align:left;padding:.5rem .75rem;border-bottom:1px solid #e5e7eb}
.status{padding:.1rem .5rem;border-radius:999px;background:#e5e7eb}
.status.compliant{background:#dcfce7}
.status.noncompliant{background:#fee2e2}
.error{background:#fee2e2;border:1px solid #fca5a5;padding:1rem;border-radius:6px}
.toast{padding:.75rem 1rem;border-radius:6px;margin-bottom:1rem;background:#e0f2fe}
.toast.toast-error{background:#fee2e2}
.toast.toast-success{background:#dcfce7}
.modal{display:none;position:fixed;inset:0;background:rgba(0,0,0,.4);align-items:center;justify-content:center}
.modal:target{display:flex}
.modal-content{background:#fff;border-radius:8px;padding:1.5rem;max-width:800px;width:90%;max-height:85vh;overflow:auto}
.modal-content dl{display:grid;grid-template-columns:max-content 1fr;gap:.25rem 1rem}
.modal-content pre{background:#f6f8fa;padding:.75rem;overflow:auto}
`
