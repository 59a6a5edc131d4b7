package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/studyhive/backend/internal/models"
)

// ChatGenerator generates questions via an OpenAI-compatible
// chat-completions endpoint.
type ChatGenerator struct {
	httpClient *http.Client
	apiKey     string
	apiURL     string
	model      string
}

// NewChatGenerator creates a chat-completions backed generator.
func NewChatGenerator(apiKey, apiURL, model string) *ChatGenerator {
	return &ChatGenerator{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		apiKey:     apiKey,
		apiURL:     apiURL,
		model:      model,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

const systemPrompt = `You are a quiz generator for a study platform. Respond with ONLY valid JSON (no markdown, no code fences): an array of objects shaped like
[{"prompt": "Question text?", "options": ["A", "B", "C", "D"], "correct_option": 0, "explanation": "Why A is right."}]
Rules:
- Each question has 2 to 4 options.
- correct_option is the zero-based index of the right answer.
- Questions must be answerable from the provided material or subject.`

// GenerateQuestions asks the model for n questions about the material.
func (g *ChatGenerator) GenerateQuestions(ctx context.Context, material, subject string, n int) ([]models.Question, error) {
	userPrompt := fmt.Sprintf("Generate exactly %d questions.", n)
	if subject != "" {
		userPrompt += "\nSubject: " + subject
	}
	if material != "" {
		userPrompt += "\nMaterial:\n" + material
	}

	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat completions: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("provider error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("provider returned no choices")
	}

	questions, err := parseQuestionJSON(parsed.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	if len(questions) > n {
		questions = questions[:n]
	}
	return questions, nil
}

// parseQuestionJSON decodes the model output, tolerating code fences the
// prompt forbids but models still emit.
func parseQuestionJSON(content string) ([]models.Question, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var questions []models.Question
	if err := json.Unmarshal([]byte(content), &questions); err != nil {
		return nil, fmt.Errorf("decode generated questions: %w", err)
	}
	var valid []models.Question
	for _, q := range questions {
		if q.Prompt == "" || len(q.Options) < 2 || len(q.Options) > 4 {
			continue
		}
		if q.CorrectOption < 0 || q.CorrectOption >= len(q.Options) {
			continue
		}
		valid = append(valid, q)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("generated output contained no usable questions")
	}
	return valid, nil
}
