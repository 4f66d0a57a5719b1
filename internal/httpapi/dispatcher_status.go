package httpapi

import (
	"crypto/subtle"
	"net/http"

	"github.com/eclosion-dev/ifttt-core/internal/auth"
)

// reservedTestSubdomain is the tenant identity IFTTT's endpoint tester
// authenticates as.
const reservedTestSubdomain = "ifttt-test"

type dispatcher struct {
	d *Deps
}

func (disp *dispatcher) requireServiceKey(w http.ResponseWriter, r *http.Request) bool {
	got := r.Header.Get("IFTTT-Service-Key")
	if subtle.ConstantTimeCompare([]byte(got), []byte(disp.d.ServiceKey)) != 1 {
		writeIftttError(w, errAuthMissing())
		return false
	}
	return true
}

// status answers GET /ifttt/v1/status: a bare 200 once the service key
// matches, used by IFTTT to confirm the endpoint is alive.
func (disp *dispatcher) status(w http.ResponseWriter, r *http.Request) {
	if !disp.requireServiceKey(w, r) {
		return
	}
	w.WriteHeader(http.StatusOK)
}

// testSetup answers GET /ifttt/v1/test/setup: mints a bearer token for
// the reserved test subdomain and returns the fixed sample payload
// IFTTT's endpoint tester checks triggers/actions/queries/fields
// against.
func (disp *dispatcher) testSetup(w http.ResponseWriter, r *http.Request) {
	if !disp.requireServiceKey(w, r) {
		return
	}

	token, err := auth.Mint(disp.d.HMACSecret, reservedTestSubdomain)
	if err != nil {
		writeIftttError(w, errInternal())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = writeTestSetupBody(w, token)
}

// userInfo answers GET /ifttt/v1/user/info.
func (disp *dispatcher) userInfo(w http.ResponseWriter, r *http.Request) {
	sub := auth.Subdomain(r.Context())
	writeData(w, http.StatusOK, map[string]string{
		"name": sub,
		"id":   sub,
		"url":  "https://" + sub + ".eclosion.app",
	})
}
