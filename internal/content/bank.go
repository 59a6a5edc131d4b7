package content

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/studyhive/backend/internal/models"
)

// BankGenerator produces arithmetic drill questions locally. It backs the
// platform when no AI provider is configured, so quizzes and competitions
// always work in development and tests.
type BankGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewBankGenerator creates a generator seeded for reproducibility.
func NewBankGenerator(seed int64) *BankGenerator {
	return &BankGenerator{rng: rand.New(rand.NewSource(seed))}
}

// GenerateQuestions returns n arithmetic questions. Material and subject are
// ignored; the bank is a fallback, not a tutor.
func (g *BankGenerator) GenerateQuestions(_ context.Context, _, _ string, n int) ([]models.Question, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n <= 0 {
		n = 5
	}
	questions := make([]models.Question, 0, n)
	for i := 0; i < n; i++ {
		a := g.rng.Intn(50) + 1
		b := g.rng.Intn(50) + 1
		answer := a + b
		correct := g.rng.Intn(4)
		options := make([]string, 4)
		used := map[int]bool{answer: true}
		for j := range options {
			if j == correct {
				options[j] = fmt.Sprintf("%d", answer)
				continue
			}
			wrong := answer + g.rng.Intn(19) - 9
			for wrong == answer || used[wrong] {
				wrong++
			}
			used[wrong] = true
			options[j] = fmt.Sprintf("%d", wrong)
		}
		questions = append(questions, models.Question{
			Prompt:        fmt.Sprintf("What is %d + %d?", a, b),
			Options:       options,
			CorrectOption: correct,
			Explanation:   fmt.Sprintf("%d + %d = %d", a, b, answer),
		})
	}
	return questions, nil
}
