package rest

import (
	"encoding/json"
	"net/http"

	"github.com/mohitkumar/txflow/metrics"
	"github.com/mohitkumar/txflow/model"
	"github.com/mohitkumar/txflow/outcome"
)

// HandleClassify runs the outcome classifier on a status posted by the caller.
func (s *Server) HandleClassify(w http.ResponseWriter, r *http.Request) {
	var status model.OperationStatus
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&status); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid status: "+err.Error())
		return
	}
	res, terminal := outcome.Classify(status)
	body := map[string]any{"terminal": terminal}
	if terminal {
		body["outcome"] = res
	}
	respondWithJSON(w, http.StatusOK, body)
}

func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	rows, err := metrics.Snapshot()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []metrics.Row{}
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"rows": rows})
}
