package domain

// Phase is the lifecycle phase of a session.
type Phase string

const (
	PhaseLobby      Phase = "lobby"      // waiting for players to join
	PhaseQuestion   Phase = "question"   // answering window open
	PhaseReview     Phase = "review"     // window closed, awaiting scoring
	PhaseScoreboard Phase = "scoreboard" // results revealed
	PhaseFinished   Phase = "finished"   // terminal
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// CanTransitionTo reports whether moving from p to target is legal.
// review -> scoreboard happens only as a side effect of scoring.
func (p Phase) CanTransitionTo(target Phase) bool {
	validTransitions := map[Phase][]Phase{
		PhaseLobby:      {PhaseQuestion},
		PhaseQuestion:   {PhaseReview},
		PhaseReview:     {PhaseScoreboard},
		PhaseScoreboard: {PhaseQuestion, PhaseFinished},
	}

	allowed, ok := validTransitions[p]
	if !ok {
		return false
	}
	for _, phase := range allowed {
		if phase == target {
			return true
		}
	}
	return false
}
