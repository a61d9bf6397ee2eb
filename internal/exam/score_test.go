package exam

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestScoreAnswer(t *testing.T) {
	q := Question{ID: "q1", Marks: 5, NegativeMarks: 2, Active: true}
	right := &Option{ID: "o1", QuestionID: "q1", IsCorrect: true}
	wrong := &Option{ID: "o2", QuestionID: "q1"}

	tests := []struct {
		name      string
		selected  *Option
		negative  bool
		wantOK    bool
		wantMarks float64
	}{
		{name: "correct option awards full marks", selected: right, negative: true, wantOK: true, wantMarks: 5},
		{name: "correct option ignores negative flag", selected: right, negative: false, wantOK: true, wantMarks: 5},
		{name: "wrong option with negative marking", selected: wrong, negative: true, wantMarks: -2},
		{name: "wrong option without negative marking", selected: wrong, negative: false, wantMarks: 0},
		{name: "unanswered always zero", selected: nil, negative: true, wantMarks: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := scoreAnswer(q, tt.selected, tt.negative)
			if r.IsCorrect != tt.wantOK {
				t.Errorf("IsCorrect = %v, want %v", r.IsCorrect, tt.wantOK)
			}
			if !almostEqual(r.MarksAwarded, tt.wantMarks) {
				t.Errorf("MarksAwarded = %v, want %v", r.MarksAwarded, tt.wantMarks)
			}
			if r.Answered != (tt.selected != nil) {
				t.Errorf("Answered = %v", r.Answered)
			}
		})
	}
}

// Mixed attempt: Q1 (5/-2) correct, Q2 (4/-1) wrong, Q3 (2/-0.5)
// unanswered, negative marking on. Total = 5 - 1 + 0 = 4.
func TestScoreMixedAttempt(t *testing.T) {
	q1 := Question{ID: "q1", Marks: 5, NegativeMarks: 2, Active: true}
	q2 := Question{ID: "q2", Marks: 4, NegativeMarks: 1, Active: true}
	q3 := Question{ID: "q3", Marks: 2, NegativeMarks: 0.5, Active: true}

	g := AttemptGraph{
		Attempt: Attempt{ID: "a1", ExamID: "e1", UserID: "u1", Completed: true},
		Exam:    Exam{ID: "e1", NegativeMarking: true},
		Answers: []AnswerRow{
			{Answer: Answer{QuestionID: "q1", SelectedOptionID: "q1-right"}, Question: q1,
				SelectedOption: &Option{ID: "q1-right", QuestionID: "q1", IsCorrect: true}},
			{Answer: Answer{QuestionID: "q2", SelectedOptionID: "q2-wrong"}, Question: q2,
				SelectedOption: &Option{ID: "q2-wrong", QuestionID: "q2"}},
			{Answer: Answer{QuestionID: "q3"}, Question: q3},
		},
	}

	ev := Score(g)
	if !almostEqual(ev.TotalScore, 4) {
		t.Fatalf("TotalScore = %v, want 4", ev.TotalScore)
	}
	wantCorrect := map[string]bool{"q1": true, "q2": false, "q3": false}
	wantMarks := map[string]float64{"q1": 5, "q2": -1, "q3": 0}
	for _, r := range ev.Answers {
		if r.IsCorrect != wantCorrect[r.QuestionID] {
			t.Errorf("%s: IsCorrect = %v, want %v", r.QuestionID, r.IsCorrect, wantCorrect[r.QuestionID])
		}
		if !almostEqual(r.MarksAwarded, wantMarks[r.QuestionID]) {
			t.Errorf("%s: MarksAwarded = %v, want %v", r.QuestionID, r.MarksAwarded, wantMarks[r.QuestionID])
		}
	}

	// Invariant: clamped sum of marks equals the total.
	sum := 0.0
	for _, r := range ev.Answers {
		sum += r.MarksAwarded
	}
	if sum < 0 {
		sum = 0
	}
	if !almostEqual(sum, ev.TotalScore) {
		t.Errorf("sum(marks) clamped = %v, total = %v", sum, ev.TotalScore)
	}
}

// A single wrong answer at 5/-10 drives the raw sum to -10; the total is
// floored at zero.
func TestScoreClampsNegativeTotal(t *testing.T) {
	q := Question{ID: "q1", Marks: 5, NegativeMarks: 10, Active: true}
	g := AttemptGraph{
		Attempt: Attempt{ID: "a1", ExamID: "e1", Completed: true},
		Exam:    Exam{ID: "e1", NegativeMarking: true},
		Answers: []AnswerRow{
			{Answer: Answer{QuestionID: "q1", SelectedOptionID: "bad"}, Question: q,
				SelectedOption: &Option{ID: "bad", QuestionID: "q1"}},
		},
	}
	ev := Score(g)
	if ev.TotalScore != 0 {
		t.Fatalf("TotalScore = %v, want 0 (clamped)", ev.TotalScore)
	}
	if len(ev.Answers) != 1 || !almostEqual(ev.Answers[0].MarksAwarded, -10) {
		t.Fatalf("per-answer marks should keep the raw penalty, got %+v", ev.Answers)
	}
}
