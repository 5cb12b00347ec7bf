package server

import (
	"bytes"
	"strconv"
	"strings"
)

// ReloadPath is where the live-reload websocket is served.
const ReloadPath = "/_sitepress/livereload"

const reloadScript = `<script data-sitepress-livereload>
(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + %s);
  ws.onmessage = function (event) {
    var msg = JSON.parse(event.data);
    if (msg.type === "reload") {
      location.reload();
    } else if (msg.type === "error") {
      var old = document.getElementById("sitepress-error-overlay");
      if (old) { old.remove(); }
      document.body.insertAdjacentHTML("beforeend", msg.html);
    }
  };
  ws.onclose = function () {
    setTimeout(function () { location.reload(); }, 1000);
  };
})();
</script>
`

var (
	closingBody = []byte("</body>")
	script      = []byte(strings.Replace(reloadScript, "%s", strconv.Quote(ReloadPath), 1))
)

// lastIndexFold is bytes.LastIndex ignoring ASCII case.
func lastIndexFold(s, sep []byte) int {
	for i := len(s) - len(sep); i >= 0; i-- {
		if bytes.EqualFold(s[i:i+len(sep)], sep) {
			return i
		}
	}
	return -1
}

// InjectReloadScript inserts the live-reload client before the last
// closing body tag, or appends it when the document has none.
func InjectReloadScript(document []byte) []byte {
	idx := lastIndexFold(document, closingBody)
	out := make([]byte, 0, len(document)+len(script))
	if idx < 0 {
		out = append(out, document...)
		return append(out, script...)
	}
	out = append(out, document[:idx]...)
	out = append(out, script...)
	return append(out, document[idx:]...)
}
