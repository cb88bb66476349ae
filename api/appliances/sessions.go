package appliances

import (
	"net/http"
	"time"

	"github.com/kilianp07/chargeplan/core/sessionlog"
)

// NewSessionHandler returns an HTTP handler exposing finished charge cycles
// via GET /api/sessions. Requests must include an Authorization header with
// "Bearer <token>" when token is non-empty.
func NewSessionHandler(store sessionlog.Store, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		q := sessionlog.Query{
			ApplianceID: r.URL.Query().Get("appliance_id"),
			VehicleID:   r.URL.Query().Get("vehicle_id"),
		}
		if s := r.URL.Query().Get("start"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.Start = t
			}
		}
		if s := r.URL.Query().Get("end"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.End = t
			}
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []sessionlog.Record{}
		}
		writeJSON(w, http.StatusOK, records)
	})
}
