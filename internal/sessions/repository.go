package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studyhive/backend/internal/models"
)

// ErrNoRow is returned when a lookup matches nothing. Services translate it
// into the not_found kind so callers cannot distinguish missing from expired.
var ErrNoRow = errors.New("no matching row")

// ErrDuplicateCode is returned when a session insert loses a code-allocation
// race. The allocator retries; the conflict is never surfaced to clients.
var ErrDuplicateCode = errors.New("session code already in use")

// Repository is the single store of record for sessions, participants and
// answers. Every component mutates session state through it.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a session repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const sessionColumns = `code, kind, name, subject, host_identity, capacity, vs_bot, is_active,
	quiz_status, current_question, questions, quiz_started_at, quiz_completed_at,
	timer_running, timer_duration_seconds, timer_started_at, timer_remaining_seconds,
	shared_document, shared_files, shared_notes, chat_log, scroll_position,
	created_at, expires_at`

func scanSession(row pgx.Row) (*models.Session, error) {
	var (
		s            models.Session
		questionsRaw []byte
		filesRaw     []byte
		chatRaw      []byte
		document     string
		notes        string
		scroll       float64
	)
	err := row.Scan(&s.Code, &s.Kind, &s.Name, &s.Subject, &s.HostIdentity, &s.Capacity, &s.VsBot, &s.IsActive,
		&s.QuizStatus, &s.CurrentQuestion, &questionsRaw, &s.QuizStartedAt, &s.QuizCompletedAt,
		&s.Timer.IsRunning, &s.Timer.DurationSeconds, &s.Timer.StartedAt, &s.Timer.RemainingSeconds,
		&document, &filesRaw, &notes, &chatRaw, &scroll,
		&s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoRow
		}
		return nil, err
	}
	if err := json.Unmarshal(questionsRaw, &s.Questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	if s.Kind == models.KindRoom {
		content := &models.SharedContent{Document: document, Notes: notes, ScrollPosition: scroll}
		if err := json.Unmarshal(filesRaw, &content.Files); err != nil {
			return nil, fmt.Errorf("decode shared files: %w", err)
		}
		if err := json.Unmarshal(chatRaw, &content.Chat); err != nil {
			return nil, fmt.Errorf("decode chat log: %w", err)
		}
		s.SharedContent = content
	}
	return &s, nil
}

// Create inserts a session and its host participant in one transaction.
func (r *Repository) Create(ctx context.Context, s *models.Session, host models.Participant) error {
	questionsRaw, err := json.Marshal(s.Questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const insertSession = `INSERT INTO sessions
		(code, kind, name, subject, host_identity, capacity, vs_bot, quiz_status, questions, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := tx.Exec(ctx, insertSession,
		s.Code, s.Kind, s.Name, s.Subject, s.HostIdentity, s.Capacity, s.VsBot,
		s.QuizStatus, questionsRaw, s.CreatedAt, s.ExpiresAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateCode
		}
		return err
	}
	const insertHost = `INSERT INTO participants (session_code, identity, display_name, is_bot, ready, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.Exec(ctx, insertHost,
		s.Code, host.Identity, host.DisplayName, host.IsBot, host.Ready, host.JoinedAt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetByCode loads a session with its participants, liveness unchecked.
func (r *Repository) GetByCode(ctx context.Context, code string) (*models.Session, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE code = $1`, code)
	s, err := scanSession(row)
	if err != nil {
		return nil, err
	}
	s.Participants, err = r.listParticipants(ctx, code)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CodeExists reports whether a session row already uses the code.
func (r *Repository) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sessions WHERE code = $1)`, code).Scan(&exists)
	return exists, err
}

// ListActive returns live sessions of a kind, newest first, capped at limit.
// Subject filters competitions when non-empty.
func (r *Repository) ListActive(ctx context.Context, kind models.SessionKind, subject string, now time.Time, limit int) ([]*models.Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM sessions
		WHERE kind = $1 AND is_active = TRUE AND expires_at > $2
		  AND ($3 = '' OR subject = $3)
		ORDER BY created_at DESC
		LIMIT $4`
	rows, err := r.pool.Query(ctx, q, kind, now, subject, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, s := range list {
		if s.Participants, err = r.listParticipants(ctx, s.Code); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// FindWaitingCompetition picks the oldest live 1-vs-1 competition still
// waiting with a single entrant. FIFO so early waiters are not starved.
func (r *Repository) FindWaitingCompetition(ctx context.Context, subject string, now time.Time) (*models.Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM sessions s
		WHERE kind = $1 AND quiz_status = $2 AND capacity = 2
		  AND is_active = TRUE AND expires_at > $3
		  AND vs_bot = FALSE
		  AND ($4 = '' OR subject = $4)
		  AND (SELECT COUNT(*) FROM participants p WHERE p.session_code = s.code) = 1
		ORDER BY created_at ASC
		LIMIT 1`
	row := r.pool.QueryRow(ctx, q, models.KindCompetition, models.QuizWaiting, now, subject)
	s, err := scanSession(row)
	if err != nil {
		return nil, err
	}
	s.Participants, err = r.listParticipants(ctx, s.Code)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Repository) listParticipants(ctx context.Context, code string) ([]models.Participant, error) {
	const q = `SELECT session_code, identity, display_name, is_bot, ready, joined_at
		FROM participants WHERE session_code = $1 ORDER BY joined_at ASC, identity ASC`
	rows, err := r.pool.Query(ctx, q, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.SessionCode, &p.Identity, &p.DisplayName, &p.IsBot, &p.Ready, &p.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AddParticipant inserts a participant row.
func (r *Repository) AddParticipant(ctx context.Context, p models.Participant) error {
	const q = `INSERT INTO participants (session_code, identity, display_name, is_bot, ready, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.pool.Exec(ctx, q, p.SessionCode, p.Identity, p.DisplayName, p.IsBot, p.Ready, p.JoinedAt)
	return err
}

// UpdateParticipantName refreshes a display name on idempotent rejoin.
func (r *Repository) UpdateParticipantName(ctx context.Context, code string, identity uuid.UUID, name string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE participants SET display_name = $3 WHERE session_code = $1 AND identity = $2`,
		code, identity, name)
	return err
}

// RebindIdentity moves a participant entry (and their answers) to a new
// identity. Covers a client that regenerated its identity across reloads.
func (r *Repository) RebindIdentity(ctx context.Context, code string, oldID, newID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx,
		`UPDATE participants SET identity = $3 WHERE session_code = $1 AND identity = $2`,
		code, oldID, newID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE answers SET identity = $3 WHERE session_code = $1 AND identity = $2`,
		code, oldID, newID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE sessions SET host_identity = $3 WHERE code = $1 AND host_identity = $2`,
		code, oldID, newID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// RemoveParticipant deletes a participant row. Answers are retained.
func (r *Repository) RemoveParticipant(ctx context.Context, code string, identity uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM participants WHERE session_code = $1 AND identity = $2`, code, identity)
	return err
}

// ToggleReady flips the ready flag and returns the new value.
func (r *Repository) ToggleReady(ctx context.Context, code string, identity uuid.UUID) (bool, error) {
	var ready bool
	err := r.pool.QueryRow(ctx,
		`UPDATE participants SET ready = NOT ready WHERE session_code = $1 AND identity = $2 RETURNING ready`,
		code, identity).Scan(&ready)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNoRow
	}
	return ready, err
}

// SetHost reassigns host authority.
func (r *Repository) SetHost(ctx context.Context, code string, identity uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE sessions SET host_identity = $2 WHERE code = $1`, code, identity)
	return err
}

// Deactivate marks a session logically dead.
func (r *Repository) Deactivate(ctx context.Context, code string) error {
	_, err := r.pool.Exec(ctx, `UPDATE sessions SET is_active = FALSE WHERE code = $1`, code)
	return err
}

// DeactivateExpired flips all live sessions past their TTL. Returns the
// number of sessions swept.
func (r *Repository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions SET is_active = FALSE WHERE is_active = TRUE AND expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// PurgeInactiveBefore deletes long-dead session rows and their sub-records.
func (r *Repository) PurgeInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM sessions WHERE is_active = FALSE AND expires_at <= $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UpdateTimer persists the shared timer fields.
func (r *Repository) UpdateTimer(ctx context.Context, code string, t models.Timer) error {
	const q = `UPDATE sessions SET timer_running = $2, timer_duration_seconds = $3,
		timer_started_at = $4, timer_remaining_seconds = $5 WHERE code = $1`
	_, err := r.pool.Exec(ctx, q, code, t.IsRunning, t.DurationSeconds, t.StartedAt, t.RemainingSeconds)
	return err
}

// StartQuiz freezes the question list and moves the quiz to in-progress.
func (r *Repository) StartQuiz(ctx context.Context, code string, questions []models.Question, startedAt time.Time) error {
	raw, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	const q = `UPDATE sessions SET quiz_status = $2, questions = $3, current_question = 0, quiz_started_at = $4
		WHERE code = $1`
	_, err = r.pool.Exec(ctx, q, code, models.QuizInProgress, raw, startedAt)
	return err
}

// SetCurrentQuestion advances the shared question pointer.
func (r *Repository) SetCurrentQuestion(ctx context.Context, code string, index int) error {
	_, err := r.pool.Exec(ctx, `UPDATE sessions SET current_question = $2 WHERE code = $1`, code, index)
	return err
}

// CompleteQuiz stamps the terminal state.
func (r *Repository) CompleteQuiz(ctx context.Context, code string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sessions SET quiz_status = $2, quiz_completed_at = $3 WHERE code = $1`,
		code, models.QuizCompleted, at)
	return err
}

// InsertAnswerIfAbsent appends a graded answer unless one already exists for
// the (identity, question index) pair. The primary key arbitrates concurrent
// duplicates: exactly one submission wins, the rest read the winner back.
func (r *Repository) InsertAnswerIfAbsent(ctx context.Context, a models.Answer) (bool, *models.Answer, error) {
	const ins = `INSERT INTO answers (session_code, identity, question_index, selected_option, is_correct, time_taken_seconds, answered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_code, identity, question_index) DO NOTHING`
	tag, err := r.pool.Exec(ctx, ins,
		a.SessionCode, a.Identity, a.QuestionIndex, a.SelectedOption, a.IsCorrect, a.TimeTakenSeconds, a.AnsweredAt)
	if err != nil {
		return false, nil, err
	}
	if tag.RowsAffected() == 1 {
		return true, &a, nil
	}
	existing, err := r.GetAnswer(ctx, a.SessionCode, a.Identity, a.QuestionIndex)
	if err != nil {
		return false, nil, err
	}
	return false, existing, nil
}

// GetAnswer returns one answer row.
func (r *Repository) GetAnswer(ctx context.Context, code string, identity uuid.UUID, questionIndex int) (*models.Answer, error) {
	const q = `SELECT session_code, identity, question_index, selected_option, is_correct, time_taken_seconds, answered_at
		FROM answers WHERE session_code = $1 AND identity = $2 AND question_index = $3`
	var a models.Answer
	err := r.pool.QueryRow(ctx, q, code, identity, questionIndex).
		Scan(&a.SessionCode, &a.Identity, &a.QuestionIndex, &a.SelectedOption, &a.IsCorrect, &a.TimeTakenSeconds, &a.AnsweredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoRow
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAnswers returns every answer in a session in submission order.
func (r *Repository) ListAnswers(ctx context.Context, code string) ([]models.Answer, error) {
	const q = `SELECT session_code, identity, question_index, selected_option, is_correct, time_taken_seconds, answered_at
		FROM answers WHERE session_code = $1 ORDER BY answered_at ASC, question_index ASC`
	rows, err := r.pool.Query(ctx, q, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Answer
	for rows.Next() {
		var a models.Answer
		if err := rows.Scan(&a.SessionCode, &a.Identity, &a.QuestionIndex, &a.SelectedOption, &a.IsCorrect, &a.TimeTakenSeconds, &a.AnsweredAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Score returns the number of correct answers for one participant.
func (r *Repository) Score(ctx context.Context, code string, identity uuid.UUID) (int, error) {
	var score int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM answers WHERE session_code = $1 AND identity = $2 AND is_correct`,
		code, identity).Scan(&score)
	return score, err
}

// SetSharedDocument updates the room's current document reference.
func (r *Repository) SetSharedDocument(ctx context.Context, code, document string) error {
	_, err := r.pool.Exec(ctx, `UPDATE sessions SET shared_document = $2 WHERE code = $1`, code, document)
	return err
}

// SetSharedNotes replaces the room's freeform notes.
func (r *Repository) SetSharedNotes(ctx context.Context, code, notes string) error {
	_, err := r.pool.Exec(ctx, `UPDATE sessions SET shared_notes = $2 WHERE code = $1`, code, notes)
	return err
}

// SetScrollPosition updates the synced scroll position.
func (r *Repository) SetScrollPosition(ctx context.Context, code string, position float64) error {
	_, err := r.pool.Exec(ctx, `UPDATE sessions SET scroll_position = $2 WHERE code = $1`, code, position)
	return err
}

// AppendChat appends one message to the room chat log.
func (r *Repository) AppendChat(ctx context.Context, code string, msg models.ChatMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode chat message: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE sessions SET chat_log = chat_log || $2::jsonb WHERE code = $1`, code, raw)
	return err
}

// AppendSharedFile appends one file record to the room's shared list.
func (r *Repository) AppendSharedFile(ctx context.Context, code string, f models.SharedFile) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode shared file: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE sessions SET shared_files = shared_files || $2::jsonb WHERE code = $1`, code, raw)
	return err
}
