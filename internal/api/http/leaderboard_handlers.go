package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/solymanHossen/online-exam-sub000/internal/exam"
)

// GET /exams/{examID}/leaderboard
func LeaderboardHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		examID := chi.URLParam(r, "examID")
		if _, err := store.GetExam(r.Context(), examID); err != nil {
			writeErr(w, err)
			return
		}
		rows, err := store.ListRankings(r.Context(), examID)
		if err != nil {
			writeErr(w, err)
			return
		}
		if rows == nil {
			rows = []exam.Ranking{}
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

// GET /exams/{examID}/stats — lifetime attempted/correct counters for the
// exam's questions. Admin only (routed behind stats:view).
func QuestionStatsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := store.GetExam(r.Context(), chi.URLParam(r, "examID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		ids := make([]string, 0, len(e.Questions))
		for _, q := range e.Questions {
			ids = append(ids, q.ID)
		}
		stats, err := store.GetQuestionStats(r.Context(), ids)
		if err != nil {
			writeErr(w, err)
			return
		}
		if stats == nil {
			stats = []exam.QuestionStat{}
		}
		writeJSON(w, http.StatusOK, stats)
	}
}
