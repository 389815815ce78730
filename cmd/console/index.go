package main

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Transformer Console</title>
<style>
  body { font-family: sans-serif; max-width: 900px; margin: 2rem auto; padding: 0 1rem; }
  textarea, input { width: 100%; box-sizing: border-box; margin: 0.25rem 0 0.75rem; padding: 0.4rem; }
  button { padding: 0.5rem 1.25rem; cursor: pointer; }
  pre { background: #f4f4f4; padding: 1rem; white-space: pre-wrap; }
  .row { display: flex; gap: 1rem; }
  .row > div { flex: 1; }
  img.heatmap { max-width: 420px; margin: 0.5rem; border: 1px solid #ddd; }
  h2 { margin-top: 2.5rem; }
</style>
</head>
<body>
<h1>Transformer Console</h1>

<h2>Generate Text</h2>
<label>Prompt</label>
<textarea id="prompt" rows="2">Once upon a time</textarea>
<div class="row">
  <div><label>Max tokens</label><input id="maxTokens" type="number" value="50"></div>
  <div><label>Temperature</label><input id="temperature" type="number" step="0.1" value="0.8"></div>
  <div><label>Top-k</label><input id="topK" type="number" value="40"></div>
</div>
<button onclick="generate()">Generate</button>
<pre id="genOut"></pre>

<h2>Attention Heatmaps</h2>
<label>Text</label>
<textarea id="attnText" rows="2">The quick brown fox jumps over the lazy dog.</textarea>
<div class="row">
  <div><label>Layer</label><input id="layer" type="number" value="0"></div>
  <div><label>Head (-1 for all)</label><input id="head" type="number" value="-1"></div>
</div>
<button onclick="attention()">Visualize</button>
<div id="attnOut"></div>

<script>
async function post(path, body) {
  const resp = await fetch(path, {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify(body),
  });
  const data = await resp.json();
  if (!resp.ok) throw new Error(data.error || resp.statusText);
  return data;
}

async function generate() {
  const out = document.getElementById('genOut');
  out.textContent = 'Generating...';
  try {
    const data = await post('/api/generate', {
      prompt: document.getElementById('prompt').value,
      max_tokens: parseInt(document.getElementById('maxTokens').value, 10),
      temperature: parseFloat(document.getElementById('temperature').value),
      top_k: parseInt(document.getElementById('topK').value, 10),
    });
    out.textContent = data.generated_text +
      '\n\n(' + data.token_count + ' tokens, ' + data.duration_ms.toFixed(0) + ' ms)';
  } catch (err) {
    out.textContent = 'Error: ' + err.message;
  }
}

async function attention() {
  const out = document.getElementById('attnOut');
  out.innerHTML = 'Rendering...';
  const head = parseInt(document.getElementById('head').value, 10);
  const body = {
    text: document.getElementById('attnText').value,
    layer: parseInt(document.getElementById('layer').value, 10),
  };
  if (head >= 0) body.head = head;
  try {
    const data = await post('/api/attention', body);
    out.innerHTML = '';
    for (const img of data.images) {
      const el = document.createElement('img');
      el.className = 'heatmap';
      el.src = 'data:image/png;base64,' + img.image;
      el.title = 'Layer ' + data.layer + ', head ' + img.head;
      out.appendChild(el);
    }
  } catch (err) {
    out.textContent = 'Error: ' + err.message;
  }
}
</script>
</body>
</html>
`
