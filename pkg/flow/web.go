package flow

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

const (
	approvalCookiePrefix = "polar_mcp_approved_"
	approvalCookieAge    = 30 * 24 * 60 * 60 // seconds
)

// RegisterRoutes mounts the authorization flow endpoints.
func (c *Controller) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/", c.handleIndex).Methods(http.MethodGet)
	router.HandleFunc("/authorize", c.handleAuthorizeGet).Methods(http.MethodGet)
	router.HandleFunc("/authorize", c.handleAuthorizePost).Methods(http.MethodPost)
	router.HandleFunc("/callback", c.handleCallback).Methods(http.MethodGet)
}

func (c *Controller) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, map[string]string{"AuthorizeURL": "/authorize"}); err != nil {
		c.logger.Error().Err(err).Msg("rendering index page")
	}
}

// handleAuthorizeGet begins an authorization attempt. With a prior-consent
// cookie for the requesting client the approval page is skipped; the vendor
// redirect itself is never skipped.
func (c *Controller) handleAuthorizeGet(w http.ResponseWriter, r *http.Request) {
	req := pendingFromValues(r)

	if c.hasApprovalCookie(r, req.ClientID) {
		c.begin(w, r, req)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := approvalTemplate.Execute(w, map[string]any{
		"ClientID":      req.ClientID,
		"RedirectURI":   req.RedirectURI,
		"Scope":         strings.Join(req.Scopes, " "),
		"CodeChallenge": req.CodeChallenge,
		"ClientState":   req.ClientState,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("rendering approval page")
	}
}

// handleAuthorizePost records approval and redirects to the vendor.
func (c *Controller) handleAuthorizePost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	req := pendingFromValues(r)

	c.setApprovalCookie(w, req.ClientID)
	c.begin(w, r, req)
}

func (c *Controller) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	req, session, err := c.callback(r.Context(), query.Get("code"), query.Get("state"), query.Get("error"))
	if err != nil {
		var flowErr *FlowError
		if errors.As(err, &flowErr) {
			c.logger.Info().Str("reason", flowErr.Reason).Str("detail", flowErr.Detail).Msg("authorization failed")
			http.Error(w, flowErr.Error(), http.StatusBadRequest)
			return
		}
		c.internalError(w, err, "callback failed")
		return
	}

	c.completer.Complete(w, r, req, session)
}

// pendingFromValues reads the downstream authorization parameters from the
// query or form. In opaque-session mode callers arrive without any of them,
// which is fine: the terminal action does not need them then.
func pendingFromValues(r *http.Request) PendingRequest {
	get := func(key string) string {
		if v := r.FormValue(key); v != "" {
			return v
		}
		return r.URL.Query().Get(key)
	}

	req := PendingRequest{
		ClientID:      get("client_id"),
		RedirectURI:   get("redirect_uri"),
		CodeChallenge: get("code_challenge"),
		ClientState:   get("state"),
	}
	if scope := get("scope"); scope != "" {
		req.Scopes = strings.Fields(scope)
	}
	return req
}

func approvalCookieName(clientID string) string {
	sum := sha256.Sum256([]byte(clientID))
	return approvalCookiePrefix + hex.EncodeToString(sum[:6])
}

func (c *Controller) hasApprovalCookie(r *http.Request, clientID string) bool {
	cookie, err := r.Cookie(approvalCookieName(clientID))
	return err == nil && cookie.Value == "1"
}

func (c *Controller) setApprovalCookie(w http.ResponseWriter, clientID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     approvalCookieName(clientID),
		Value:    "1",
		Path:     "/",
		MaxAge:   approvalCookieAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Polar MCP</title></head>
<body>
  <h1>Polar MCP server</h1>
  <p>This server exposes Polar AccessLink data as MCP tools.</p>
  <p><a href="{{.AuthorizeURL}}">Connect your Polar account</a></p>
</body>
</html>
`))

var approvalTemplate = template.Must(template.New("approval").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Approve access</title></head>
<body>
  <h1>Approve access to your Polar data</h1>
  {{if .ClientID}}<p>Client <code>{{.ClientID}}</code> is requesting access.</p>{{end}}
  {{if .Scope}}<p>Requested scope: <code>{{.Scope}}</code></p>{{end}}
  <form method="POST" action="/authorize">
    <input type="hidden" name="client_id" value="{{.ClientID}}">
    <input type="hidden" name="redirect_uri" value="{{.RedirectURI}}">
    <input type="hidden" name="scope" value="{{.Scope}}">
    <input type="hidden" name="code_challenge" value="{{.CodeChallenge}}">
    <input type="hidden" name="state" value="{{.ClientState}}">
    <button type="submit">Approve and continue to Polar</button>
  </form>
</body>
</html>
`))

// successPage renders the opaque-session completion page.
func successPage(w http.ResponseWriter, mcpURL, sessionID string) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Connected</title></head>
<body>
  <h1>Polar account connected</h1>
  <p>Your session is ready. Point your MCP client at:</p>
  <p><code>%s</code></p>
  <p>The session expires after 24 hours; revisit /authorize to renew it.</p>
</body>
</html>
`, template.HTMLEscapeString(mcpURL+"?session="+sessionID))
	return err
}
