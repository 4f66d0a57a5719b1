package httpapi

import (
	"net/http"
	"strings"

	"github.com/eclosion-dev/ifttt-core/internal/auth"
	"github.com/eclosion-dev/ifttt-core/internal/broker"
	"github.com/eclosion-dev/ifttt-core/internal/tunnel"
	"github.com/go-chi/chi/v5"
)

// fieldOptions answers POST .../fields/{field}/options for both trigger
// and action routes (spec.md §4.7).
func (disp *dispatcher) fieldOptions(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	field := chi.URLParam(r, "field")
	kind := "actions"
	if strings.Contains(r.URL.Path, "/triggers/") {
		kind = "triggers"
	}

	if isTestMode(r) {
		writeData(w, http.StatusOK, []map[string]string{
			{"label": "Sample Option", "value": "sample"},
		})
		return
	}

	def, ok := fieldOptionsDefs[kind+"/"+slug+"/"+field]
	if !ok {
		writeIftttError(w, errNotFound("no options for "+kind+"/"+slug+"/"+field))
		return
	}

	if def.static != nil {
		writeData(w, http.StatusOK, def.static)
		return
	}

	subdomain := auth.Subdomain(r.Context())
	fieldSlug := kind + "." + slug + "." + field

	secret, found, err := disp.d.Global.GetActionSecret(r.Context(), subdomain)
	if err != nil || !found {
		writeData(w, http.StatusOK, cachedOptionsData(disp.d.Broker, subdomain, fieldSlug))
		return
	}

	result := disp.d.Proxy.PostEmpty(r.Context(), subdomain, secret.Secret, def.originPath)
	if !result.Online {
		writeData(w, http.StatusOK, cachedOptionsData(disp.d.Broker, subdomain, fieldSlug))
		return
	}

	var payload struct {
		Data []broker.FieldOption `json:"data"`
	}
	if decodeErr := tunnel.Decode(result, &payload); decodeErr != nil {
		writeData(w, http.StatusOK, cachedOptionsData(disp.d.Broker, subdomain, fieldSlug))
		return
	}

	go disp.d.Broker.SetFieldOptions(subdomain, fieldSlug, payload.Data)
	writeData(w, http.StatusOK, payload.Data)
}

func cachedOptionsData(mgr *broker.Manager, subdomain, fieldSlug string) []broker.FieldOption {
	opts := mgr.FieldOptions(subdomain, fieldSlug)
	if opts == nil {
		return []broker.FieldOption{}
	}
	return opts
}

// fieldValidate answers POST /triggers/{slug}/fields/{field}/validate:
// always 200 with {data:{valid, message?}} (spec.md §4.7).
func (disp *dispatcher) fieldValidate(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	field := chi.URLParam(r, "field")

	var req struct {
		Value string `json:"value"`
	}
	_ = readJSON(r, &req)

	valid, message := validateField(slug, field, req.Value)
	resp := map[string]interface{}{"valid": valid}
	if message != "" {
		resp["message"] = message
	}
	writeData(w, http.StatusOK, resp)
}
