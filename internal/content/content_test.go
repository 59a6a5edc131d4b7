package content

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBankGeneratorProducesValidQuestions(t *testing.T) {
	g := NewBankGenerator(42)
	questions, err := g.GenerateQuestions(context.Background(), "", "", 5)
	require.NoError(t, err)
	require.Len(t, questions, 5)
	for _, q := range questions {
		require.NotEmpty(t, q.Prompt)
		require.Len(t, q.Options, 4)
		require.GreaterOrEqual(t, q.CorrectOption, 0)
		require.Less(t, q.CorrectOption, len(q.Options))

		// The correct option must be unique among the distractors.
		correct := q.Options[q.CorrectOption]
		seen := map[string]int{}
		for _, opt := range q.Options {
			_, err := strconv.Atoi(opt)
			require.NoError(t, err)
			seen[opt]++
		}
		require.Equal(t, 1, seen[correct])
	}
}

func TestBankGeneratorDefaultsCount(t *testing.T) {
	g := NewBankGenerator(1)
	questions, err := g.GenerateQuestions(context.Background(), "", "", 0)
	require.NoError(t, err)
	require.Len(t, questions, 5)
}

func TestParseQuestionJSON(t *testing.T) {
	raw := `[{"prompt":"2+2?","options":["3","4"],"correct_option":1,"explanation":"sum"}]`
	questions, err := parseQuestionJSON(raw)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	require.Equal(t, "2+2?", questions[0].Prompt)
	require.Equal(t, 1, questions[0].CorrectOption)
}

func TestParseQuestionJSONStripsCodeFences(t *testing.T) {
	raw := "```json\n[{\"prompt\":\"2+2?\",\"options\":[\"3\",\"4\"],\"correct_option\":1}]\n```"
	questions, err := parseQuestionJSON(raw)
	require.NoError(t, err)
	require.Len(t, questions, 1)
}

func TestParseQuestionJSONFiltersInvalid(t *testing.T) {
	raw := `[
		{"prompt":"","options":["a","b"],"correct_option":0},
		{"prompt":"one option","options":["a"],"correct_option":0},
		{"prompt":"bad index","options":["a","b"],"correct_option":5},
		{"prompt":"good","options":["a","b"],"correct_option":1}
	]`
	questions, err := parseQuestionJSON(raw)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	require.Equal(t, "good", questions[0].Prompt)
}

func TestParseQuestionJSONRejectsGarbage(t *testing.T) {
	_, err := parseQuestionJSON("not json at all")
	require.Error(t, err)

	_, err = parseQuestionJSON(`[{"prompt":"","options":[]}]`)
	require.Error(t, err)
}

func TestOpponentAlwaysCorrectAtFullAccuracy(t *testing.T) {
	m := NewOpponentModel(1, 100)
	counts := []int{4, 4, 2}
	correct := []int{0, 3, 1}
	answers := m.Script(counts, correct)
	require.Len(t, answers, 3)
	for i, a := range answers {
		require.Equal(t, i, a.QuestionIndex)
		require.Equal(t, correct[i], a.SelectedOption)
		require.GreaterOrEqual(t, a.TimeTakenSeconds, 2.0)
		require.Less(t, a.TimeTakenSeconds, 10.0)
	}
}

func TestOpponentAlwaysWrongAtZeroAccuracy(t *testing.T) {
	m := NewOpponentModel(1, 0)
	counts := []int{4, 4, 4, 4}
	correct := []int{0, 1, 2, 3}
	for _, a := range m.Script(counts, correct) {
		require.NotEqual(t, correct[a.QuestionIndex], a.SelectedOption)
		require.GreaterOrEqual(t, a.SelectedOption, 0)
		require.Less(t, a.SelectedOption, 4)
	}
}

func TestOpponentName(t *testing.T) {
	m := NewOpponentModel(1, 50)
	require.Contains(t, botNames, m.Name())
}
