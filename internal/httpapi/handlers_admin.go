package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/MrEthical07/staysafe"
	"github.com/MrEthical07/staysafe/middleware"
)

// handleAuditTrail serves ?accountId=&from=&to=&limit= with RFC 3339 bounds.
func (a *API) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := staysafe.AuditQuery{AccountID: q.Get("accountId")}

	var err error
	if query.From, err = parseTime(q.Get("from")); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "from must be an RFC 3339 timestamp")
		return
	}
	if query.To, err = parseTime(q.Get("to")); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "to must be an RFC 3339 timestamp")
		return
	}
	if raw := q.Get("limit"); raw != "" {
		if query.Limit, err = strconv.Atoi(raw); err != nil || query.Limit < 0 {
			middleware.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
	}

	entries, err := a.engine.AuditTrail(r.Context(), query)
	if err != nil {
		a.writeEngineError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
