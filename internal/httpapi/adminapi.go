package httpapi

import (
	"net/http"
	"time"

	"github.com/eclosion-dev/ifttt-core/internal/auth"
	"github.com/eclosion-dev/ifttt-core/internal/broker"
)

// adminAPI implements the Tenant Admin API (spec.md §4.9), authenticated
// by auth.ManagementMiddleware rather than a bearer token: the caller is
// the tenant's own desktop client, not IFTTT.
type adminAPI struct {
	d *Deps
}

func (a *adminAPI) subdomain(r *http.Request) string {
	return auth.ManagementSubdomain(r.Context())
}

type eventsPushRequest struct {
	TriggerSlug string            `json:"trigger_slug"`
	Data        map[string]string `json:"data"`
}

// eventsPush answers POST /api/events/push.
func (a *adminAPI) eventsPush(w http.ResponseWriter, r *http.Request) {
	var req eventsPushRequest
	if apiErr := readJSON(r, &req); apiErr != nil {
		writeAdminError(w, apiErr)
		return
	}
	if req.TriggerSlug == "" {
		writeAdminError(w, errValidationFailed("trigger_slug is required"))
		return
	}

	subdomain := a.subdomain(r)
	id := a.d.Broker.PushTriggerEvent(subdomain, req.TriggerSlug, req.Data)
	a.d.Notifier.Notify(subdomain)

	writeJSONOK(w, map[string]interface{}{"id": id, "stored": true})
}

// queuePending answers GET /api/queue/pending.
func (a *adminAPI) queuePending(w http.ResponseWriter, r *http.Request) {
	actions := a.d.Broker.PendingQueuedActions(a.subdomain(r))
	writeJSONOK(w, map[string]interface{}{"actions": actions})
}

type queueAckRequest struct {
	ID string `json:"id"`
}

// queueAck answers POST /api/queue/ack.
func (a *adminAPI) queueAck(w http.ResponseWriter, r *http.Request) {
	var req queueAckRequest
	if apiErr := readJSON(r, &req); apiErr != nil {
		writeAdminError(w, apiErr)
		return
	}
	a.d.Broker.AckQueuedAction(a.subdomain(r), req.ID)
	writeJSONOK(w, map[string]interface{}{"acknowledged": true})
}

type fieldOptionsPushRequest struct {
	Fields map[string][]broker.FieldOption `json:"fields"`
}

// fieldOptionsPush answers POST /api/field-options/push.
func (a *adminAPI) fieldOptionsPush(w http.ResponseWriter, r *http.Request) {
	var req fieldOptionsPushRequest
	if apiErr := readJSON(r, &req); apiErr != nil {
		writeAdminError(w, apiErr)
		return
	}
	subdomain := a.subdomain(r)

	done := make(chan struct{}, len(req.Fields))
	for slug, opts := range req.Fields {
		go func(slug string, opts []broker.FieldOption) {
			a.d.Broker.SetFieldOptions(subdomain, slug, opts)
			done <- struct{}{}
		}(slug, opts)
	}
	for range req.Fields {
		<-done
	}

	writeJSONOK(w, map[string]interface{}{"stored": true})
}

// iftttStatus answers GET /api/ifttt-status.
func (a *adminAPI) iftttStatus(w http.ResponseWriter, r *http.Request) {
	user, err := a.d.Global.GetConnected(r.Context(), a.subdomain(r))
	if err != nil {
		writeAdminError(w, errInternal())
		return
	}
	writeJSONOK(w, map[string]interface{}{"connected": user.Connected, "connected_at": user.ConnectedAt})
}

// iftttDisconnect answers POST /api/ifttt-disconnect: clears connected
// state and the per-tenant action secret. Removing the registry's copy
// is left to the caller, per spec.md §4.9.
func (a *adminAPI) iftttDisconnect(w http.ResponseWriter, r *http.Request) {
	subdomain := a.subdomain(r)
	ctx := r.Context()

	if err := a.d.Global.SetConnected(ctx, subdomain, false); err != nil {
		writeAdminError(w, errInternal())
		return
	}
	if err := a.d.Global.DeleteActionSecret(ctx, subdomain); err != nil {
		writeAdminError(w, errInternal())
		return
	}

	writeJSONOK(w, map[string]interface{}{"disconnected": true})
}

// actionSecret answers GET /api/action-secret.
func (a *adminAPI) actionSecret(w http.ResponseWriter, r *http.Request) {
	secret, found, err := a.d.Global.GetActionSecret(r.Context(), a.subdomain(r))
	if err != nil {
		writeAdminError(w, errInternal())
		return
	}
	if !found {
		writeAdminError(w, errNotFound("no action secret on file"))
		return
	}
	writeJSONOK(w, map[string]interface{}{"secret": secret.Secret, "created_at": secret.CreatedAt})
}

type actionHistoryPushRequest struct {
	ActionSlug string            `json:"action_slug"`
	Fields     map[string]string `json:"fields"`
	Success    bool              `json:"success"`
	Error      string            `json:"error"`
	ProxyError string            `json:"proxy_error"`
	WasQueued  bool              `json:"was_queued"`
}

// actionHistoryGet answers GET /api/action-history.
func (a *adminAPI) actionHistoryGet(w http.ResponseWriter, r *http.Request) {
	writeJSONOK(w, map[string]interface{}{"history": a.d.Broker.History(a.subdomain(r))})
}

// actionHistoryPost answers POST /api/action-history: the desktop
// client reports the outcome of a queued action it drained and ran.
func (a *adminAPI) actionHistoryPost(w http.ResponseWriter, r *http.Request) {
	var req actionHistoryPushRequest
	if apiErr := readJSON(r, &req); apiErr != nil {
		writeAdminError(w, apiErr)
		return
	}
	a.d.Broker.PushHistory(a.subdomain(r), broker.ActionHistoryEntry{
		ActionSlug: req.ActionSlug,
		Fields:     req.Fields,
		ExecutedAt: time.Now(),
		Success:    req.Success,
		Error:      req.Error,
		ProxyError: req.ProxyError,
		WasQueued:  req.WasQueued,
	})
	writeJSONOK(w, map[string]interface{}{"stored": true})
}

// triggerHistory answers GET /api/trigger-history.
func (a *adminAPI) triggerHistory(w http.ResponseWriter, r *http.Request) {
	writeJSONOK(w, map[string]interface{}{"events": a.d.Broker.TriggerHistory(a.subdomain(r))})
}

// subscriptions answers GET /api/subscriptions.
func (a *adminAPI) subscriptions(w http.ResponseWriter, r *http.Request) {
	writeJSONOK(w, map[string]interface{}{"subscriptions": a.d.Broker.ListSubscriptions(a.subdomain(r))})
}

func writeJSONOK(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = writeJSONBody(w, v)
}
