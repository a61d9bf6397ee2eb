package http

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/solymanHossen/online-exam-sub000/internal/eventlog"
	"github.com/solymanHossen/online-exam-sub000/internal/exam"
	"github.com/solymanHossen/online-exam-sub000/internal/rbac"
)

// Enqueuer hands a completed attempt to the background evaluation queue.
type Enqueuer interface {
	Enqueue(attemptID string)
}

// POST /attempts  { "exam_id": "..." } — subject from token owns the attempt.
func CreateAttemptHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ExamID string `json:"exam_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if req.ExamID == "" {
			http.Error(w, "exam_id required", 400)
			return
		}
		a, err := store.NewAttempt(r.Context(), req.ExamID, rbac.SubjectFromContext(r.Context()))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, a)
	}
}

// PUT /attempts/{attemptID}/answers  { "question_id": "...", "selected_option_id": "..." }
func RecordAnswerHandler(capture *exam.Capture) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			QuestionID       string `json:"question_id"`
			SelectedOptionID string `json:"selected_option_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if req.QuestionID == "" || req.SelectedOptionID == "" {
			http.Error(w, "question_id and selected_option_id required", 400)
			return
		}
		err := capture.Record(r.Context(),
			rbac.SubjectFromContext(r.Context()),
			chi.URLParam(r, "attemptID"),
			req.QuestionID, req.SelectedOptionID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
	}
}

// POST /attempts/{attemptID}/submit — transitions to completed with the
// end time clamped to the deadline, then queues evaluation. The response
// acknowledges submission; score and rank appear once evaluation runs.
func SubmitAttemptHandler(store exam.Store, queue Enqueuer, events *eventlog.Repo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		a, err := store.GetAttempt(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		sub := rbac.SubjectFromContext(r.Context())
		if a.UserID != sub && rbac.RoleFromContext(r.Context()) != "admin" {
			writeErr(w, exam.ErrNotOwner)
			return
		}

		endedAt := time.Now().Unix()
		if endedAt > a.EndsAt {
			endedAt = a.EndsAt
		}
		a, transitioned, err := store.CompleteAttempt(r.Context(), id, endedAt)
		if err != nil {
			writeErr(w, err)
			return
		}
		if transitioned {
			if err := events.Append(r.Context(), eventlog.Event{
				Type:     eventlog.TypeAttemptSubmitted,
				Key:      a.ID,
				DataJSON: fmt.Sprintf(`{"exam_id":%q,"user_id":%q,"ended_at":%d}`, a.ExamID, a.UserID, a.EndedAt),
			}); err != nil {
				log.Printf("event log: attempt %s: %v", a.ID, err)
			}
			queue.Enqueue(a.ID)
		}
		writeJSON(w, http.StatusAccepted, a)
	}
}

// GET /attempts/{attemptID} — own attempt, or any for admins.
func GetAttemptHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := store.GetAttempt(r.Context(), chi.URLParam(r, "attemptID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		sub := rbac.SubjectFromContext(r.Context())
		if a.UserID != sub && rbac.RoleFromContext(r.Context()) != "admin" {
			writeErr(w, exam.ErrNotOwner)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}
