package exam

// AnswerResult is the finalized outcome for one answer.
type AnswerResult struct {
	QuestionID   string
	IsCorrect    bool
	MarksAwarded float64
	Answered     bool // false when the student left the question blank
}

// Evaluation is the full output of scoring one attempt: final per-answer
// results, the clamped total, and the stat deltas to apply. It carries no
// persistence concerns so it is testable with in-memory structures.
type Evaluation struct {
	AttemptID  string
	ExamID     string
	UserID     string
	TotalScore float64
	Answers    []AnswerResult
}

// scoreAnswer decides one answer. An unanswered question scores zero and
// is wrong; a wrong option costs the question's penalty only when the
// exam enables negative marking.
func scoreAnswer(q Question, selected *Option, negativeMarking bool) AnswerResult {
	res := AnswerResult{QuestionID: q.ID}
	if selected == nil {
		return res
	}
	res.Answered = true
	if selected.IsCorrect {
		res.IsCorrect = true
		res.MarksAwarded = q.Marks
		return res
	}
	if negativeMarking {
		res.MarksAwarded = -q.NegativeMarks
	}
	return res
}

// Score computes the evaluation of a fully loaded attempt graph. Answers
// are independent, so order does not matter; the total is floored at zero
// after all of them are summed.
func Score(g AttemptGraph) Evaluation {
	ev := Evaluation{
		AttemptID: g.Attempt.ID,
		ExamID:    g.Attempt.ExamID,
		UserID:    g.Attempt.UserID,
		Answers:   make([]AnswerResult, 0, len(g.Answers)),
	}
	total := 0.0
	for _, row := range g.Answers {
		r := scoreAnswer(row.Question, row.SelectedOption, g.Exam.NegativeMarking)
		total += r.MarksAwarded
		ev.Answers = append(ev.Answers, r)
	}
	if total < 0 {
		total = 0
	}
	ev.TotalScore = total
	return ev
}
