package content

import (
	"math/rand"
	"sync"
)

var botNames = []string{
	"Study Bot", "Quiz Whiz", "Brainiac", "Bookworm", "Night Owl", "Flash Card",
}

// BotAnswer is one scripted submission for a synthetic opponent. The answers
// go through the same grading path as human submissions.
type BotAnswer struct {
	QuestionIndex    int
	SelectedOption   int
	TimeTakenSeconds float64
}

// OpponentModel scripts a synthetic opponent: per-question accuracy plus a
// latency spread so results look plausible on scoreboards.
type OpponentModel struct {
	mu          sync.Mutex
	rng         *rand.Rand
	accuracyPct int
}

// NewOpponentModel creates a model answering correctly accuracyPct percent
// of the time.
func NewOpponentModel(seed int64, accuracyPct int) *OpponentModel {
	if accuracyPct < 0 {
		accuracyPct = 0
	}
	if accuracyPct > 100 {
		accuracyPct = 100
	}
	return &OpponentModel{rng: rand.New(rand.NewSource(seed)), accuracyPct: accuracyPct}
}

// Name picks a display name for a new opponent.
func (m *OpponentModel) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return botNames[m.rng.Intn(len(botNames))]
}

// Script produces one answer per question. optionCounts and correctOptions
// are parallel to the session's question list.
func (m *OpponentModel) Script(optionCounts, correctOptions []int) []BotAnswer {
	m.mu.Lock()
	defer m.mu.Unlock()
	answers := make([]BotAnswer, 0, len(correctOptions))
	for i, correct := range correctOptions {
		selected := correct
		if m.rng.Intn(100) >= m.accuracyPct && optionCounts[i] > 1 {
			// pick a wrong option
			selected = m.rng.Intn(optionCounts[i] - 1)
			if selected >= correct {
				selected++
			}
		}
		answers = append(answers, BotAnswer{
			QuestionIndex:    i,
			SelectedOption:   selected,
			TimeTakenSeconds: 2 + m.rng.Float64()*8,
		})
	}
	return answers
}
