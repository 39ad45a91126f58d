package network

import (
	"net/http"
	"strconv"
	"time"

	"github.com/MRamiBalles/reactor-sim/internal/events"
	"github.com/MRamiBalles/reactor-sim/internal/infra/storage"
)

const defaultRecapLimit = 50

// JournalResponse is the body of GET /api/journal.
type JournalResponse struct {
	ReactorID   string                `json:"reactor_id"`
	TotalEvents int                   `json:"total_events"`
	FilteredBy  string                `json:"filtered_by,omitempty"`
	GeneratedAt string                `json:"generated_at"`
	Events      []events.ReactorEvent `json:"events,omitempty"`
	Recap       []storage.RecapEntry  `json:"recap,omitempty"`
}

// HandleJournal returns journal entries.
// GET /api/journal?since=SEQ&type=ALERT_RAISED
// GET /api/journal?view=recap&limit=N
//
// The recap view reads the durable store and so only lists entries that
// have been written through.
func (s *Server) HandleJournal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	resp := JournalResponse{
		ReactorID:   s.driver.ReactorID(),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}

	if q.Get("view") == "recap" {
		if s.recap == nil {
			jsonError(w, "No journal store configured", http.StatusNotFound)
			return
		}
		limit, err := queryInt(r, "limit")
		if err != nil {
			jsonError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		if limit == 0 {
			limit = defaultRecapLimit
		}
		recap, err := s.recap.Generate(r.Context(), resp.ReactorID, limit)
		if err != nil {
			s.logger.Error("failed to build journal recap", "error", err)
			jsonError(w, "Failed to read journal", http.StatusInternalServerError)
			return
		}
		resp.Recap = recap
		resp.TotalEvents = len(recap)
		resp.FilteredBy = "recap"
		writeJSON(w, http.StatusOK, resp)
		return
	}

	var since uint64
	if v := q.Get("since"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			jsonError(w, "Invalid since", http.StatusBadRequest)
			return
		}
		since = n
		resp.FilteredBy = "since " + v
	}

	eventType := events.EventType(q.Get("type"))
	for _, e := range s.driver.Journal().Since(since) {
		if eventType != "" && e.Type != eventType {
			continue
		}
		resp.Events = append(resp.Events, e)
	}
	if eventType != "" {
		if resp.FilteredBy != "" {
			resp.FilteredBy += ", "
		}
		resp.FilteredBy += "type " + string(eventType)
	}
	resp.TotalEvents = len(resp.Events)

	writeJSON(w, http.StatusOK, resp)
}
