package api

import (
	"net/http"
)

func (a *Api) handleGetStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.provisioner == nil {
			a.jsonError(w, "Provisioner not ready", http.StatusServiceUnavailable)
			return
		}

		a.jsonResponse(w, a.provisioner.Status(), http.StatusOK)
	}
}
