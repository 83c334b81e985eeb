package domain

import "testing"

func TestPhaseTransitions(t *testing.T) {
	allowed := []struct{ from, to Phase }{
		{PhaseLobby, PhaseQuestion},
		{PhaseQuestion, PhaseReview},
		{PhaseReview, PhaseScoreboard},
		{PhaseScoreboard, PhaseQuestion},
		{PhaseScoreboard, PhaseFinished},
	}
	for _, tr := range allowed {
		if !tr.from.CanTransitionTo(tr.to) {
			t.Fatalf("expected %s -> %s to be legal", tr.from, tr.to)
		}
	}

	forbidden := []struct{ from, to Phase }{
		{PhaseLobby, PhaseReview},
		{PhaseLobby, PhaseScoreboard},
		{PhaseLobby, PhaseFinished},
		{PhaseQuestion, PhaseScoreboard},
		{PhaseQuestion, PhaseLobby},
		{PhaseReview, PhaseQuestion},
		{PhaseReview, PhaseFinished},
		{PhaseScoreboard, PhaseLobby},
		{PhaseFinished, PhaseLobby},
		{PhaseFinished, PhaseQuestion},
	}
	for _, tr := range forbidden {
		if tr.from.CanTransitionTo(tr.to) {
			t.Fatalf("expected %s -> %s to be illegal", tr.from, tr.to)
		}
	}
}

func TestQuestionValidate(t *testing.T) {
	ok := Question{Prompt: "p", Options: []string{"a", "b"}, CorrectIndex: 1, DurationSec: 10}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid question rejected: %v", err)
	}

	bad := []Question{
		{Prompt: "p", Options: []string{"a"}, CorrectIndex: 0, DurationSec: 10},
		{Prompt: "p", Options: []string{"a", "b"}, CorrectIndex: 2, DurationSec: 10},
		{Prompt: "p", Options: []string{"a", "b"}, CorrectIndex: -1, DurationSec: 10},
		{Prompt: "p", Options: []string{"a", "b"}, CorrectIndex: 0, DurationSec: 0},
	}
	for i, q := range bad {
		if err := q.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}
