package app

import "live-quiz-service/internal/domain"

// DefaultDeck returns the built-in sample deck used when a session is
// created without naming a question bank. Hosts can edit these questions
// before play starts.
func DefaultDeck() domain.Deck {
	return domain.Deck{
		ID: "default",
		Questions: []domain.Question{
			{
				Prompt:       "Which of these is a prime number?",
				Options:      []string{"21", "29", "1", "91"},
				CorrectIndex: 1,
				DurationSec:  20,
			},
			{
				Prompt:       "Which is the largest planet in the solar system?",
				Options:      []string{"Jupiter", "Saturn", "Uranus", "Earth"},
				CorrectIndex: 0,
				DurationSec:  15,
			},
			{
				Prompt:       "Which keyword declares a constant in JavaScript?",
				Options:      []string{"let", "const", "var", "static"},
				CorrectIndex: 1,
				DurationSec:  15,
			},
			{
				Prompt:       "What does HTTP status code 404 mean?",
				Options:      []string{"OK", "Server error", "Unauthorized", "Not found"},
				CorrectIndex: 3,
				DurationSec:  10,
			},
			{
				Prompt:       "How many meters are in a kilometer?",
				Options:      []string{"10", "100", "1000", "10000"},
				CorrectIndex: 2,
				DurationSec:  10,
			},
			{
				Prompt:       "Binary 1010 equals which decimal number?",
				Options:      []string{"8", "9", "10", "11"},
				CorrectIndex: 2,
				DurationSec:  12,
			},
			{
				Prompt:       "Which React hook holds component state?",
				Options:      []string{"useRef", "useMemo", "useEffect", "useState"},
				CorrectIndex: 3,
				DurationSec:  12,
			},
			{
				Prompt:       "Which of these is not a primary color of light?",
				Options:      []string{"Red", "Green", "Blue", "Black"},
				CorrectIndex: 3,
				DurationSec:  12,
			},
			{
				Prompt:       "Pi is approximately equal to?",
				Options:      []string{"2.14", "3.14", "3.41", "4.13"},
				CorrectIndex: 1,
				DurationSec:  10,
			},
			{
				Prompt:       "Which ocean is the largest?",
				Options:      []string{"Atlantic", "Indian", "Pacific", "Arctic"},
				CorrectIndex: 2,
				DurationSec:  12,
			},
		},
	}
}
