package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/solymanHossen/online-exam-sub000/internal/exam"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps domain sentinels onto HTTP statuses: authorization
// rejections → 403, referential mismatches → 422, unknown ids → 404.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, exam.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, exam.ErrNotOwner), errors.Is(err, exam.ErrAttemptCompleted):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, exam.ErrQuestionNotInExam), errors.Is(err, exam.ErrOptionNotInQuestion):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
