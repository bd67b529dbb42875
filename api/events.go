package api

import (
	"net/http"
	"strconv"
)

const defaultEventLimit = 50

func (a *Api) handleGetEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.provisioner == nil {
			a.jsonError(w, "Provisioner not ready", http.StatusServiceUnavailable)
			return
		}

		limit := defaultEventLimit

		if value := r.URL.Query().Get("limit"); value != "" {
			var err error

			limit, err = strconv.Atoi(value)
			if err != nil || limit < 0 {
				a.jsonError(w, "Invalid limit", http.StatusBadRequest)
				return
			}
		}

		events, err := a.provisioner.Events(limit)
		if err != nil {
			a.log.Errorf("Could not list events: %v", err)
			a.jsonError(w, "Could not list events", http.StatusInternalServerError)
			return
		}

		a.jsonResponse(w, events, http.StatusOK)
	}
}
