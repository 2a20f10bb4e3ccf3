// Package pgstore is the Postgres SQL backend for sessions, soul files,
// working-memory snapshots, and long-term memories, backed by
// github.com/lib/pq. It is the multi-node / shared-deployment counterpart
// to internal/storage/sqlitestore, and mirrors its query shapes with
// Postgres placeholder syntax and prepared statements for the hot paths.
package pgstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/nexuscore/agentrt/internal/agent/builtins"
	"github.com/nexuscore/agentrt/internal/engram"
	"github.com/nexuscore/agentrt/internal/sessions"
	"github.com/nexuscore/agentrt/internal/storage"
	"github.com/nexuscore/agentrt/pkg/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	_ sessions.Store            = (*Store)(nil)
	_ builtins.SoulStore        = (*Store)(nil)
	_ engram.WorkingMemoryStore = (*Store)(nil)
	_ engram.LongTermStore      = (*Store)(nil)
)

// Config holds the Postgres connection pool settings.
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultConfig returns sane local-development defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            5432,
		User:            "postgres",
		Database:        "nexuscore",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// Store implements sessions.Store, builtins.SoulStore,
// engram.WorkingMemoryStore, and engram.LongTermStore against Postgres.
type Store struct {
	db *sql.DB

	stmtAppendMessage *sql.Stmt
	stmtGetHistory    *sql.Stmt
}

// Open connects to Postgres using cfg (DefaultConfig if nil), applies
// pending migrations, and prepares the hot-path statements.
func Open(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode, int(cfg.ConnectTimeout.Seconds()),
	)
	return OpenDSN(ctx, dsn, cfg)
}

// OpenDSN connects using a raw DSN/URL, useful when the caller already
// assembles one (e.g. from a managed Postgres connection string).
func OpenDSN(ctx context.Context, dsn string, cfg *Config) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	migrator, err := storage.NewMigrator(db, migrationsFS)
	if err != nil {
		db.Close()
		return nil, err
	}
	if _, err := migrator.Up(ctx, 0); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	store := &Store{db: db}
	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) prepareStatements() error {
	var err error
	s.stmtAppendMessage, err = s.db.Prepare(`
		INSERT INTO messages (id, session_id, role, content, tool_calls, tool_call_id, name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return fmt.Errorf("prepare append message: %w", err)
	}
	s.stmtGetHistory, err = s.db.Prepare(`
		SELECT id, session_id, role, content, tool_calls, tool_call_id, name, created_at
		FROM messages WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2
	`)
	if err != nil {
		return fmt.Errorf("prepare get history: %w", err)
	}
	return nil
}

// Close closes the prepared statements and the underlying connection pool.
func (s *Store) Close() error {
	var errs []error
	if s.stmtAppendMessage != nil {
		if err := s.stmtAppendMessage.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.stmtGetHistory != nil {
		if err := s.stmtGetHistory.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing store: %v", errs)
	}
	return nil
}

// --- sessions.Store ---

func (s *Store) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = session.CreatedAt

	var key any
	if session.Key != "" {
		key = session.Key
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, agent_id, key, model, system_prompt, message_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, session.ID, session.AgentID, key, session.Model, session.SystemPrompt, session.MessageCount, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, agent_id, COALESCE(key, ''), model, system_prompt, message_count, created_at, updated_at
		FROM sessions WHERE id = $1
	`, id)
	return scanSession(row)
}

func (s *Store) Update(ctx context.Context, session *models.Session) error {
	session.UpdatedAt = time.Now()
	var key any
	if session.Key != "" {
		key = session.Key
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET key = $1, model = $2, system_prompt = $3, message_count = $4, updated_at = $5
		WHERE id = $6
	`, key, session.Model, session.SystemPrompt, session.MessageCount, session.UpdatedAt, session.ID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return requireRowsAffected(result, "session not found: "+session.ID)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return requireRowsAffected(result, "session not found: "+id)
}

// GetOrCreate atomically inserts or returns the existing session for key
// via INSERT ... ON CONFLICT DO UPDATE, avoiding the race a read-then-write
// would have between concurrent callers.
func (s *Store) GetOrCreate(ctx context.Context, key string, agentID string) (*models.Session, error) {
	now := time.Now()
	id := uuid.NewString()

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO sessions (id, agent_id, key, model, system_prompt, message_count, created_at, updated_at)
		VALUES ($1, $2, $3, '', '', 0, $4, $4)
		ON CONFLICT (key) DO UPDATE SET key = sessions.key
		RETURNING id, agent_id, COALESCE(key, ''), model, system_prompt, message_count, created_at, updated_at
	`, id, agentID, key, now)
	return scanSession(row)
}

func (s *Store) List(ctx context.Context, agentID string, opts sessions.ListOptions) ([]*models.Session, error) {
	query := `SELECT id, agent_id, COALESCE(key, ''), model, system_prompt, message_count, created_at, updated_at FROM sessions`
	args := []any{}
	argPos := 1
	if agentID != "" {
		query += fmt.Sprintf(" WHERE agent_id = $%d", argPos)
		args = append(args, agentID)
		argPos++
	}
	query += " ORDER BY created_at"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argPos)
		args = append(args, opts.Limit)
		argPos++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argPos)
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		session := &models.Session{}
		if err := rows.Scan(&session.ID, &session.AgentID, &session.Key, &session.Model, &session.SystemPrompt, &session.MessageCount, &session.CreatedAt, &session.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, session)
	}
	return out, rows.Err()
}

// AppendMessage wraps the message insert and the session's message_count/
// updated_at bump in one transaction so a crash between the two never
// leaves message_count out of sync with the persisted history.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	msg.SessionID = sessionID

	var toolCalls any
	if len(msg.ToolCalls) > 0 {
		encoded, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return fmt.Errorf("marshal tool_calls: %w", err)
		}
		toolCalls = string(encoded)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append message: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.StmtContext(ctx, s.stmtAppendMessage).ExecContext(ctx,
		msg.ID, sessionID, string(msg.Role), msg.Content, toolCalls, msg.ToolCallID, msg.Name, msg.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE sessions SET message_count = message_count + 1, updated_at = $1 WHERE id = $2
	`, msg.CreatedAt, sessionID)
	if err != nil {
		return fmt.Errorf("update session message_count: %w", err)
	}
	if err := requireRowsAffected(result, "session not found: "+sessionID); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.stmtGetHistory.QueryContext(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := []*models.Message{}
	for rows.Next() {
		msg := &models.Message{}
		var role string
		var toolCalls sql.NullString
		if err := rows.Scan(&msg.ID, &msg.SessionID, &role, &msg.Content, &toolCalls, &msg.ToolCallID, &msg.Name, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = models.Role(role)
		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("unmarshal tool_calls: %w", err)
			}
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// stmtGetHistory orders newest-first to apply LIMIT against the most
	// recent messages; reverse back to chronological order for the caller.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func scanSession(row *sql.Row) (*models.Session, error) {
	session := &models.Session{}
	err := row.Scan(&session.ID, &session.AgentID, &session.Key, &session.Model, &session.SystemPrompt, &session.MessageCount, &session.CreatedAt, &session.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

func requireRowsAffected(result sql.Result, notFoundMsg string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s", notFoundMsg)
	}
	return nil
}

// --- builtins.SoulStore ---

func (s *Store) ReadSoulFile(ctx context.Context, agentID, fileName string) (string, error) {
	var content string
	err := s.db.QueryRowContext(ctx, `SELECT content FROM soul_files WHERE agent_id = $1 AND file_name = $2`, agentID, fileName).Scan(&content)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read soul file: %w", err)
	}
	return content, nil
}

func (s *Store) WriteSoulFile(ctx context.Context, agentID, fileName, content string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO soul_files (agent_id, file_name, content, updated_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (agent_id, file_name) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at
	`, agentID, fileName, content, time.Now())
	if err != nil {
		return fmt.Errorf("write soul file: %w", err)
	}
	return nil
}

func (s *Store) ListSoulFiles(ctx context.Context, agentID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT file_name FROM soul_files WHERE agent_id = $1 ORDER BY file_name`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list soul files: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan soul file: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// --- engram.WorkingMemoryStore ---

func (s *Store) SaveWorkingMemory(ctx context.Context, agentID string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO working_memory (agent_id, data, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (agent_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, agentID, data, time.Now())
	if err != nil {
		return fmt.Errorf("save working memory: %w", err)
	}
	return nil
}

func (s *Store) LoadWorkingMemory(ctx context.Context, agentID string) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM working_memory WHERE agent_id = $1`, agentID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load working memory: %w", err)
	}
	return data, true, nil
}

func (s *Store) DeleteWorkingMemory(ctx context.Context, agentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM working_memory WHERE agent_id = $1`, agentID)
	if err != nil {
		return fmt.Errorf("delete working memory: %w", err)
	}
	return nil
}

// --- engram.LongTermStore ---

func (s *Store) Insert(ctx context.Context, m *models.Memory) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	var embedding []byte
	if len(m.Embedding) > 0 {
		embedding = storage.EncodeEmbedding(m.Embedding)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memories (id, agent_id, content, category, importance, embedding,
			trust_relevance, trust_accuracy, trust_freshness, trust_utility, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, m.ID, m.AgentID, m.Content, m.Category, m.Importance, embedding,
		m.Trust.Relevance, m.Trust.Accuracy, m.Trust.Freshness, m.Trust.Utility, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

// CandidatesBM25 mirrors sqlitestore.Store.CandidatesBM25: a brute-force
// term-overlap score rather than a Postgres-specific full-text index, so
// recall ranking behaves identically across both backends.
func (s *Store) CandidatesBM25(ctx context.Context, agentID, query string, limit int) ([]engram.Candidate, error) {
	memories, err := s.agentMemories(ctx, agentID)
	if err != nil {
		return nil, err
	}
	terms := storage.TokenizeForScoring(query)

	type scored struct {
		mem   *models.Memory
		score float64
	}
	var candidates []scored
	for _, mem := range memories {
		if score := storage.TermOverlapScore(mem.Content, terms); score > 0 {
			candidates = append(candidates, scored{mem: mem, score: score})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]engram.Candidate, len(candidates))
	for i, c := range candidates {
		out[i] = engram.Candidate{Memory: c.mem, Rank: i, Score: c.score}
	}
	return out, nil
}

func (s *Store) CandidatesVector(ctx context.Context, agentID string, embedding []float32, limit int) ([]engram.Candidate, error) {
	memories, err := s.agentMemories(ctx, agentID)
	if err != nil {
		return nil, err
	}

	type scored struct {
		mem   *models.Memory
		score float64
	}
	var candidates []scored
	for _, mem := range memories {
		if len(mem.Embedding) == 0 {
			continue
		}
		candidates = append(candidates, scored{mem: mem, score: storage.CosineSimilarity(embedding, mem.Embedding)})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]engram.Candidate, len(candidates))
	for i, c := range candidates {
		out[i] = engram.Candidate{Memory: c.mem, Rank: i, Score: c.score}
	}
	return out, nil
}

func (s *Store) MissingEmbeddings(ctx context.Context, limit int) ([]*models.Memory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_id, content, category, importance, trust_relevance, trust_accuracy, trust_freshness, trust_utility, created_at, updated_at
		FROM memories WHERE embedding IS NULL LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query missing embeddings: %w", err)
	}
	defer rows.Close()

	var out []*models.Memory
	for rows.Next() {
		mem := &models.Memory{}
		if err := rows.Scan(&mem.ID, &mem.AgentID, &mem.Content, &mem.Category, &mem.Importance,
			&mem.Trust.Relevance, &mem.Trust.Accuracy, &mem.Trust.Freshness, &mem.Trust.Utility,
			&mem.CreatedAt, &mem.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		out = append(out, mem)
	}
	return out, rows.Err()
}

func (s *Store) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	result, err := s.db.ExecContext(ctx, `UPDATE memories SET embedding = $1, updated_at = $2 WHERE id = $3`, storage.EncodeEmbedding(embedding), time.Now(), id)
	if err != nil {
		return fmt.Errorf("update embedding: %w", err)
	}
	return requireRowsAffected(result, "memory not found: "+id)
}

func (s *Store) DeleteByAgent(ctx context.Context, agentIDs []string) (int, error) {
	total := 0
	for _, agentID := range agentIDs {
		result, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE agent_id = $1`, agentID)
		if err != nil {
			return total, fmt.Errorf("delete memories for %s: %w", agentID, err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("rows affected: %w", err)
		}
		total += int(rows)
	}
	return total, nil
}

func (s *Store) agentMemories(ctx context.Context, agentID string) ([]*models.Memory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_id, content, category, importance, embedding,
			trust_relevance, trust_accuracy, trust_freshness, trust_utility, created_at, updated_at
		FROM memories WHERE agent_id = $1
	`, agentID)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var out []*models.Memory
	for rows.Next() {
		mem := &models.Memory{}
		var embedding []byte
		if err := rows.Scan(&mem.ID, &mem.AgentID, &mem.Content, &mem.Category, &mem.Importance, &embedding,
			&mem.Trust.Relevance, &mem.Trust.Accuracy, &mem.Trust.Freshness, &mem.Trust.Utility,
			&mem.CreatedAt, &mem.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		if len(embedding) > 0 {
			mem.Embedding = storage.DecodeEmbedding(embedding)
		}
		out = append(out, mem)
	}
	return out, rows.Err()
}
