// Package content provides the question/content generator capability. The
// session core depends only on the Generator interface; concrete providers
// are constructed once at process start and passed in.
package content

import (
	"context"

	"github.com/studyhive/backend/internal/models"
)

// Generator produces multiple-choice questions from study material.
type Generator interface {
	GenerateQuestions(ctx context.Context, material, subject string, n int) ([]models.Question, error)
}
