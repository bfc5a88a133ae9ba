package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SandboxGateway settles hosted checkouts on the in-memory gateway.
type SandboxGateway interface {
	Complete(id string) (string, error)
	Cancel(id string) (string, error)
}

// SandboxController stands in for the gateway's hosted payment page.
type SandboxController struct {
	gateway SandboxGateway
}

func NewSandboxController(gw SandboxGateway) *SandboxController {
	return &SandboxController{gateway: gw}
}

// Checkout handles GET /sandbox/checkout/{session}
//
// ?outcome=paid or ?outcome=cancel settles the checkout and redirects to the
// matching return URL. Without an outcome it lists both choices.
func (h *SandboxController) Checkout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session")

	var (
		target string
		err    error
	)
	switch r.URL.Query().Get("outcome") {
	case "paid":
		target, err = h.gateway.Complete(id)
	case "cancel":
		target, err = h.gateway.Cancel(id)
	case "":
		base := r.URL.Path + "?outcome="
		writeJSON(w, http.StatusOK, map[string]string{
			"checkout": id,
			"pay":      base + "paid",
			"cancel":   base + "cancel",
		})
		return
	default:
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "outcome must be paid or cancel", Code: "invalid_outcome"})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
