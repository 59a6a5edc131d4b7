package sessions

import (
	"time"

	"github.com/studyhive/backend/internal/models"
)

// Summary is the compact session shape used by list endpoints.
type Summary struct {
	Code             string             `json:"code"`
	Kind             models.SessionKind `json:"kind"`
	Name             string             `json:"name,omitempty"`
	Subject          string             `json:"subject,omitempty"`
	HostName         string             `json:"host_name,omitempty"`
	ParticipantCount int                `json:"participant_count"`
	Capacity         int                `json:"capacity,omitempty"`
	QuizStatus       models.QuizStatus  `json:"quiz_status"`
	CreatedAt        time.Time          `json:"created_at"`
}

// Summarize maps sessions to their list shape.
func Summarize(list []*models.Session) []Summary {
	out := make([]Summary, 0, len(list))
	for _, s := range list {
		summary := Summary{
			Code:             s.Code,
			Kind:             s.Kind,
			Name:             s.Name,
			Subject:          s.Subject,
			ParticipantCount: len(s.Participants),
			Capacity:         s.Capacity,
			QuizStatus:       s.QuizStatus,
			CreatedAt:        s.CreatedAt,
		}
		if p, ok := s.Participant(s.HostIdentity); ok {
			summary.HostName = p.DisplayName
		}
		out = append(out, summary)
	}
	return out
}
