package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrDecode is returned when a stored payload cannot be decoded.
	ErrDecode = errors.New("store: malformed payload")
)

type Postgres struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgres(dsn string, logger *zap.Logger) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Postgres{db: db, logger: logger}
	if err = s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Postgres) Close() error {
	return s.db.Close()
}

func (s *Postgres) initSchema() error {
	schema, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("failed to read migrations file: %w", err)
	}
	if _, err = s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("failed to execute migrations: %w", err)
	}
	return nil
}

// EnsureSession creates the session with category "general" if it does not
// exist. The conflict clause makes it idempotent and safe under concurrent
// first use of the same session id.
func (s *Postgres) EnsureSession(ctx context.Context, sessionID string, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (session_id, user_id, category)
		 VALUES ($1, $2, 'general')
		 ON CONFLICT (session_id) DO NOTHING`,
		sessionID, userID)
	if err != nil {
		return fmt.Errorf("failed to ensure session: %w", err)
	}
	return nil
}

func (s *Postgres) AppendMessage(ctx context.Context, sessionID, role, content string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO chat_messages (session_id, role, content) VALUES ($1, $2, $3)",
		sessionID, role, content)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// AppendMessageForUser ensures the session exists before inserting, so
// saving a message implicitly creates its session.
func (s *Postgres) AppendMessageForUser(ctx context.Context, sessionID string, userID int64, role, content string) error {
	if err := s.EnsureSession(ctx, sessionID, userID); err != nil {
		return err
	}
	return s.AppendMessage(ctx, sessionID, role, content)
}

// RecentMessages returns the last limit messages of a session in
// chronological order, fetching newest-first and reversing.
func (s *Postgres) RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, timestamp
		 FROM chat_messages
		 WHERE session_id = $1
		 ORDER BY timestamp DESC
		 LIMIT $2`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}

	// reverse to ASC (oldest -> newest)
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *Postgres) UserProfile(ctx context.Context, userID int64) (*UserProfile, error) {
	var (
		profile UserProfile
		rank    sql.NullString
		level   sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, total_score, rank, academic_level FROM v_user_profile_stats WHERE user_id = $1",
		userID).Scan(&profile.UserID, &profile.TotalScore, &rank, &level)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user profile: %w", err)
	}
	if rank.Valid {
		profile.Rank = rank.String
	}
	if level.Valid {
		l := int(level.Int64)
		profile.AcademicLevel = &l
	}
	return &profile, nil
}

// SearchRules matches the rule catalog by case-insensitive substring on the
// activity name. A rule applies when its level floor is unset or at most
// minLevel.
func (s *Postgres) SearchRules(ctx context.Context, keyword string, minLevel int) ([]Rule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rule_id, activity_name, points, max_points
		 FROM pbas_rules
		 WHERE activity_name ILIKE $1
		 AND (min_academic_level IS NULL OR min_academic_level <= $2)`,
		"%"+keyword+"%", minLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var r Rule
		if err := rows.Scan(&r.RuleID, &r.ActivityName, &r.Points, &r.MaxPoints); err != nil {
			return nil, fmt.Errorf("failed to scan rule row: %w", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rule rows: %w", err)
	}
	return rules, nil
}

func (s *Postgres) PromotionThreshold(ctx context.Context, rank string) (int, error) {
	var required int
	err := s.db.QueryRowContext(ctx,
		"SELECT required_score FROM promotion_rules WHERE rank = $1", rank).Scan(&required)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to query promotion threshold: %w", err)
	}
	return required, nil
}

// AuditMetadata returns the decoded audit document for a submission.
// A malformed payload yields ErrDecode rather than partial data.
func (s *Postgres) AuditMetadata(ctx context.Context, submissionID string) (map[string]any, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT audit_metadata FROM audit_logs WHERE submission_id = $1", submissionID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}

	var metadata map[string]any
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		s.logger.Warn("Malformed audit metadata",
			zap.String("submission_id", submissionID), zap.Error(err))
		return nil, fmt.Errorf("%w: audit metadata for submission %s: %v", ErrDecode, submissionID, err)
	}
	return metadata, nil
}

// SetSessionCategory updates the session's topic label. Returns ErrNotFound
// when the session does not exist instead of silently succeeding.
func (s *Postgres) SetSessionCategory(ctx context.Context, sessionID, category string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE chat_sessions SET category = $1 WHERE session_id = $2", category, sessionID)
	if err != nil {
		return fmt.Errorf("failed to update session category: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Rule document methods (semantic index)

func (s *Postgres) InsertRuleDocument(ctx context.Context, doc *RuleDocument) error {
	err := s.db.QueryRowContext(ctx,
		"INSERT INTO rule_documents (content, embedding) VALUES ($1, $2::vector) RETURNING id",
		doc.Content, pgvector.NewVector(doc.Embedding)).Scan(&doc.ID)
	if err != nil {
		return fmt.Errorf("failed to insert rule document: %w", err)
	}
	return nil
}

func (s *Postgres) ClearRuleDocuments(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM rule_documents"); err != nil {
		return fmt.Errorf("failed to clear rule documents: %w", err)
	}
	return nil
}

// NearestRuleDocuments returns the contents of the k rule documents closest
// to the query embedding by cosine distance.
func (s *Postgres) NearestRuleDocuments(ctx context.Context, embedding []float32, k int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT content FROM rule_documents
		 WHERE embedding IS NOT NULL
		 ORDER BY embedding <=> $1::vector
		 LIMIT $2`,
		pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query rule documents: %w", err)
	}
	defer rows.Close()

	var contents []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("failed to scan rule document row: %w", err)
		}
		contents = append(contents, content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rule document rows: %w", err)
	}
	return contents, nil
}
