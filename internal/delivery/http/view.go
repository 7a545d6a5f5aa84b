package http

import (
	"html/template"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/vogiaan1904/ticketbottle-gate/internal/models"
)

var placeholder = regexp.MustCompile(`\{\{\s?(\w+)\s?\}\}`)

// renderView substitutes {{ key }} placeholders. Unknown keys are left as is.
func renderView(tpl string, props map[string]string) string {
	return placeholder.ReplaceAllStringFunc(tpl, func(m string) string {
		key := placeholder.FindStringSubmatch(m)[1]
		if v, ok := props[key]; ok {
			return v
		}
		return m
	})
}

func (h *Handler) waitPage(w http.ResponseWriter, cfg *models.QueueConfig, d *models.GateDecision) {
	tpl := cfg.WaitingRoomPage
	if tpl == "" {
		tpl = defaultWaitPage
	}

	verb, plural := "are", "people"
	if d.VisitorsAhead == 1 {
		verb, plural = "is", "person"
	}

	body := renderView(tpl, map[string]string{
		"visitorsAhead":  humanize.Comma(d.VisitorsAhead),
		"visitorsVerb":   verb,
		"visitorsPlural": plural,
		"estimatedTime":  d.EstimatedWaitText,
	})

	w.Header().Set("Content-Type", "text/html")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Refresh", strconv.Itoa(max(int(cfg.RefreshInterval/time.Second), 1)))
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, body)
}

func writeHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, body)
}

const defaultWaitPage = `<!DOCTYPE html>
<html lang="en"><head><meta charset="UTF-8" /><meta name="viewport" content="width=device-width, initial-scale=1.0" />
<title>Waiting Room</title>
<style>body { font-family: Tahoma, Arial, sans-serif; font-size: 17px; text-align: center; margin-top: 10%; }</style>
</head><body>
<h1>You are in the queue</h1>
<p>There {{ visitorsVerb }} {{ visitorsAhead }} {{ visitorsPlural }} ahead of you.</p>
<p>Estimated wait: {{ estimatedTime }}</p>
<p>This page refreshes automatically. Please keep it open.</p>
</body></html>`

const defaultAdminPage = `<!DOCTYPE html>
<html lang="en"><head><meta charset="UTF-8" /><title>Queue Admin</title>
<style>body { font-family: Tahoma, Arial, sans-serif; font-size: 17px; }</style>
</head><body>
<h1>{{ queueName }}</h1>
<p>Visitors waiting: {{ visitorsWaiting }} (cursor {{ cursor }}, length {{ length }})</p>
<form method="GET" action="{{ adminBase }}">
<input type="number" min="1" name="amt" value="1"> <input type="submit" value="Let visitors in">
</form>
</body></html>`

// globalView is the global config form model. The password is never rendered.
type globalView struct {
	*models.GlobalConfig
	Base string
}

var globalForm = template.Must(template.New("global").Parse(`<!DOCTYPE html>
<html lang="en"><head><meta charset="UTF-8" /><title>Virtual Queue</title>
<style>body { font-family: Tahoma, Arial, sans-serif; font-size: 17px; }</style>
</head><body>
<form method="POST">
<table>
<tr><td><label for="forceDebug">Force Debug logging</label></td>
<td><input type="hidden" name="forceDebug" value="0"><input type="checkbox" name="forceDebug" value="1"{{if .ForceDebug}} checked{{end}}></td></tr>
<tr><td><label for="active">Default queue state to active</label></td>
<td><input type="hidden" name="active" value="0"><input type="checkbox" name="active" value="1"{{if .Active}} checked{{end}}></td></tr>
<tr><td><label for="adminPath">Default queue admin path</label></td>
<td><input type="text" name="adminPath" value="{{.AdminPath}}"></td></tr>
<tr><td><label for="adminPassword">Default queue admin password (blank keeps it)</label></td>
<td><input type="password" name="adminPassword" value=""></td></tr>
<tr><td><label for="expires">Queues expire at (RFC 3339)</label></td>
<td><input type="text" name="expires" value="{{.Expires}}"></td></tr>
<tr><td><label for="refreshInterval">Queue page refresh interval (secs)</label></td>
<td><input type="number" min="0" max="86400" name="refreshInterval" value="{{.RefreshInterval}}"></td></tr>
<tr><td><label for="cookieName">Default cookie name (beware collisions!)</label></td>
<td><input type="text" name="cookieName" value="{{.CookieName}}"></td></tr>
<tr><td><label for="cookieExpiry">Cookie expiry (sec)</label></td>
<td><input type="number" min="0" max="31536000" name="cookieExpiry" value="{{.CookieExpiry}}"></td></tr>
<tr><td><label for="automatic">How often to let users in automatically (sec)</label></td>
<td><input type="number" min="0" name="automatic" value="{{.Automatic}}"></td></tr>
<tr><td><label for="automaticQuantity">How many users to let in each period</label></td>
<td><input type="number" min="0" name="automaticQuantity" value="{{.AutomaticQuantity}}"></td></tr>
<tr><td><label for="redisUrl">Url to your redis instance</label></td>
<td><input type="text" size="60" name="redisUrl" value="{{.RedisURL}}"></td></tr>
<tr><td><input type="submit" value="Save Changes"></td></tr>
</table>
</form>
<h2>Queues</h2>
<table>
{{range .Queues}}<tr><td><code>{{.Pattern}}</code></td><td><a href="{{$.Base}}/queues/{{.QueueName}}">{{.QueueName}}</a></td></tr>
{{end}}</table>
<h2>Secret store record names</h2>
<table>
<tr><td>Redis token for API access</td><td>{{.RedisToken}}</td></tr>
<tr><td>Default private key for the queue ticket</td><td>{{.PrivateKey}}</td></tr>
<tr><td>Default public key for the queue ticket</td><td>{{.PublicKey}}</td></tr>
</table>
</body></html>`))
