package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/solymanHossen/online-exam-sub000/internal/exam"
	"github.com/solymanHossen/online-exam-sub000/internal/rbac"
)

// POST /exams — admin only; body is the full exam graph.
func UploadExamHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var e exam.Exam
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if e.ID == "" || len(e.Questions) == 0 {
			http.Error(w, "id and questions required", 400)
			return
		}
		if err := store.PutExam(r.Context(), e); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": e.ID})
	}
}

// GET /exams/{examID} — correctness flags are stripped unless the caller
// is an admin.
func GetExamHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := store.GetExam(r.Context(), chi.URLParam(r, "examID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		if rbac.RoleFromContext(r.Context()) != "admin" {
			for qi := range e.Questions {
				for oi := range e.Questions[qi].Options {
					e.Questions[qi].Options[oi].IsCorrect = false
				}
			}
		}
		writeJSON(w, http.StatusOK, e)
	}
}
