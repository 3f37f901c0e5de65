package templates

// Shared by both pages: settings are read from the form, JSON errors are
// shown with their code.
const commonScript = `
function settings() {
  const f = document.getElementById('settings');
  if (!f) return null;
  const v = n => f.querySelector('[name="' + n + '"]');
  return {
    delimiter: v('delimiter').value,
    quote_char: v('quote_char').value,
    escape_char: v('escape_char').value,
    header: v('header').checked,
    encoding: v('encoding').value
  };
}
function esc(s) {
  return String(s ?? '').replace(/[&<>"']/g, c => ({'&':'&amp;','<':'&lt;','>':'&gt;','"':'&quot;',"'":'&#39;'}[c]));
}
async function api(method, url, body) {
  const opts = {method, headers: {'Accept': 'application/json'}};
  if (body instanceof FormData) opts.body = body;
  else if (body !== undefined) { opts.body = JSON.stringify(body); opts.headers['Content-Type'] = 'application/json'; }
  const res = await fetch(url, opts);
  const data = await res.json();
  if (!res.ok) throw data;
  return data;
}
function alertHTML(e) {
  return '<div class="alert"><strong>' + esc(e.message || e.error || e) + '</strong> ' + esc(e.action) + ' <code>' + esc(e.code) + '</code></div>';
}
function tableHTML(t, types) {
  let h = '<table><tr>';
  t.columns.forEach((c, i) => { h += '<th>' + esc(c) + (types ? '<small>' + esc(types[i]) + '</small>' : '') + '</th>'; });
  h += '</tr>';
  (t.rows || []).forEach(r => { h += '<tr>' + r.map(c => '<td>' + (c === null ? '' : esc(c)) + '</td>').join('') + '</tr>'; });
  return h + '</table>';
}
`

const uploadScript = commonScript + `
async function preview() {
  const s = settings();
  try {
    const res = await api('POST', '/api/preview', {settings: s});
    document.getElementById('preview-summary').textContent = res.error || res.summary;
    document.getElementById('preview').innerHTML = res.error ? '' : tableHTML(res.table, res.types);
  } catch (e) {
    document.getElementById('preview').innerHTML = alertHTML(e);
  }
}
document.getElementById('settings').addEventListener('change', preview);
document.getElementById('upload-form').addEventListener('submit', async ev => {
  ev.preventDefault();
  try {
    const res = await api('POST', '/api/upload', new FormData(ev.target));
    document.getElementById('upload-status').textContent = 'Current file: ' + res.file.original_filename;
    const f = document.getElementById('settings');
    f.querySelector('[name="delimiter"]').value = res.settings.delimiter === '\t' ? '\\t' : res.settings.delimiter;
    preview();
  } catch (e) {
    document.getElementById('upload-status').innerHTML = alertHTML(e);
  }
});
`

const appendScript = commonScript + `
const sel = id => document.getElementById(id);
function fill(id, names, label) {
  sel(id).innerHTML = '<option value="">' + label + '</option>' + names.map(n => '<option>' + esc(n) + '</option>').join('');
}
sel('catalog').addEventListener('change', async () => {
  fill('schema', [], 'Schema…'); fill('table', [], 'Table…');
  if (!sel('catalog').value) return;
  fill('schema', await api('GET', '/api/catalogs/' + encodeURIComponent(sel('catalog').value) + '/schemas'), 'Schema…');
});
sel('schema').addEventListener('change', async () => {
  fill('table', [], 'Table…');
  if (!sel('schema').value) return;
  fill('table', await api('GET', '/api/catalogs/' + encodeURIComponent(sel('catalog').value) + '/schemas/' + encodeURIComponent(sel('schema').value) + '/tables'), 'Table…');
});
sel('table').addEventListener('change', async () => {
  const target = {catalog: sel('catalog').value, schema: sel('schema').value, table: sel('table').value};
  if (!target.table) return;
  try {
    const state = await api('PUT', '/api/target', target);
    sel('append').disabled = !state.can_append;
    const tp = await api('GET', '/api/tables/' + [target.catalog, target.schema, target.table].map(encodeURIComponent).join('/') + '/preview');
    const types = tp.schema.columns.map(c => c.raw_type || c.type);
    sel('table-preview').innerHTML = tableHTML(tp.sample, types);
  } catch (e) {
    sel('table-preview').innerHTML = alertHTML(e);
  }
});
sel('validate').addEventListener('click', async () => {
  sel('validate').disabled = true;
  sel('validation-state').textContent = 'running';
  try {
    const r = await api('POST', '/api/validate', {});
    sel('validation-state').textContent = r.passed ? 'passed' : 'failed';
    sel('validation-state').className = r.passed ? 'ok' : 'bad';
    let h = r.error ? alertHTML({message: r.error}) : '';
    if (r.missing_columns.length) h += '<p>Missing columns: ' + r.missing_columns.map(esc).join(', ') + '</p>';
    if (r.extra_columns.length) h += '<p>Extra columns: ' + r.extra_columns.map(esc).join(', ') + '</p>';
    r.type_issues.forEach(i => { h += '<p>' + esc(i.column) + ': ' + esc(i.reason) + '</p>'; });
    r.value_issues.forEach(i => { h += '<p>' + esc(i.column) + ': ' + i.invalid_count + ' invalid ' + esc(i.declared) + ' values, e.g. ' + i.samples.map(esc).join(', ') + '</p>'; });
    sel('report').innerHTML = h;
    sel('append').disabled = !r.passed;
  } catch (e) {
    sel('report').innerHTML = alertHTML(e);
  } finally {
    sel('validate').disabled = false;
  }
});
sel('append').addEventListener('click', async () => {
  sel('append').disabled = true;
  try {
    const r = await api('POST', '/api/append', {});
    sel('append-result').innerHTML = '<p class="ok">Appended ' + r.rows_inserted + ' rows to ' + esc(r.target) + '</p>';
    sel('validation-state').textContent = 'idle';
  } catch (e) {
    sel('append-result').innerHTML = alertHTML(e);
  }
});
`
