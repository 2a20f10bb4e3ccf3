// Package sqlitestore is the pure-Go (no cgo) SQL backend for sessions,
// soul files, working-memory snapshots, and long-term memories, backed by
// modernc.org/sqlite. It is the single-node / embedded-deployment
// counterpart to internal/storage/pgstore.
package sqlitestore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

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

// Store implements sessions.Store, builtins.SoulStore,
// engram.WorkingMemoryStore, and engram.LongTermStore against a single
// sqlite database file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database at path and applies
// any pending migrations. Use ":memory:" for an ephemeral database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// sqlite serializes writers internally; a single connection avoids
	// SQLITE_BUSY from concurrent writers contending on the same file.
	db.SetMaxOpenConns(1)

	migrator, err := storage.NewMigrator(db, migrationsFS)
	if err != nil {
		db.Close()
		return nil, err
	}
	if _, err := migrator.Up(ctx, 0); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, session.ID, session.AgentID, key, session.Model, session.SystemPrompt, session.MessageCount, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, agent_id, COALESCE(key, ''), model, system_prompt, message_count, created_at, updated_at
		FROM sessions WHERE id = ?
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
		UPDATE sessions SET key = ?, model = ?, system_prompt = ?, message_count = ?, updated_at = ?
		WHERE id = ?
	`, key, session.Model, session.SystemPrompt, session.MessageCount, session.UpdatedAt, session.ID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return requireRowsAffected(result, "session not found: "+session.ID)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return requireRowsAffected(result, "session not found: "+id)
}

func (s *Store) GetOrCreate(ctx context.Context, key string, agentID string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, agent_id, COALESCE(key, ''), model, system_prompt, message_count, created_at, updated_at
		FROM sessions WHERE key = ?
	`, key)
	if session, err := scanSession(row); err == nil {
		return session, nil
	}

	now := time.Now()
	session := &models.Session{ID: uuid.NewString(), AgentID: agentID, Key: key, CreatedAt: now, UpdatedAt: now}
	if err := s.Create(ctx, session); err != nil {
		// Another caller may have raced us to the same key; fall back to it.
		if existing, getErr := s.db.QueryRowContext(ctx, `
			SELECT id, agent_id, COALESCE(key, ''), model, system_prompt, message_count, created_at, updated_at
			FROM sessions WHERE key = ?
		`, key); getErr == nil {
			if s2, scanErr := scanSession(existing); scanErr == nil {
				return s2, nil
			}
		}
		return nil, err
	}
	return session, nil
}

func (s *Store) List(ctx context.Context, agentID string, opts sessions.ListOptions) ([]*models.Session, error) {
	query := `SELECT id, agent_id, COALESCE(key, ''), model, system_prompt, message_count, created_at, updated_at FROM sessions`
	args := []any{}
	if agentID != "" {
		query += ` WHERE agent_id = ?`
		args = append(args, agentID)
	}
	query += ` ORDER BY created_at`
	if opts.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, opts.Limit, opts.Offset)
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

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, role, content, tool_calls, tool_call_id, name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, sessionID, string(msg.Role), msg.Content, toolCalls, msg.ToolCallID, msg.Name, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE sessions SET message_count = message_count + 1, updated_at = ? WHERE id = ?
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
	query := `
		SELECT id, session_id, role, content, tool_calls, tool_call_id, name, created_at
		FROM messages WHERE session_id = ? ORDER BY created_at
	`
	args := []any{sessionID}
	if limit > 0 {
		query = `
			SELECT id, session_id, role, content, tool_calls, tool_call_id, name, created_at FROM (
				SELECT id, session_id, role, content, tool_calls, tool_call_id, name, created_at
				FROM messages WHERE session_id = ? ORDER BY created_at DESC LIMIT ?
			) ORDER BY created_at
		`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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
	return out, rows.Err()
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
	err := s.db.QueryRowContext(ctx, `SELECT content FROM soul_files WHERE agent_id = ? AND file_name = ?`, agentID, fileName).Scan(&content)
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
		INSERT INTO soul_files (agent_id, file_name, content, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (agent_id, file_name) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at
	`, agentID, fileName, content, time.Now())
	if err != nil {
		return fmt.Errorf("write soul file: %w", err)
	}
	return nil
}

func (s *Store) ListSoulFiles(ctx context.Context, agentID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT file_name FROM soul_files WHERE agent_id = ? ORDER BY file_name`, agentID)
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
		INSERT INTO working_memory (agent_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (agent_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, agentID, data, time.Now())
	if err != nil {
		return fmt.Errorf("save working memory: %w", err)
	}
	return nil
}

func (s *Store) LoadWorkingMemory(ctx context.Context, agentID string) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM working_memory WHERE agent_id = ?`, agentID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load working memory: %w", err)
	}
	return data, true, nil
}

func (s *Store) DeleteWorkingMemory(ctx context.Context, agentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM working_memory WHERE agent_id = ?`, agentID)
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.AgentID, m.Content, m.Category, m.Importance, embedding,
		m.Trust.Relevance, m.Trust.Accuracy, m.Trust.Freshness, m.Trust.Utility, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

// CandidatesBM25 ranks memories by a plain term-overlap score against query
// (no FTS5 dependency): the fraction of query terms the content contains
// (storage.TermOverlapScore), which keeps behavior portable across both sqlite
// and Postgres backends without a full-text index per backend.
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
		score := storage.TermOverlapScore(mem.Content, terms)
		if score > 0 {
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

// CandidatesVector ranks memories by cosine similarity against embedding.
// Brute-force over the agent's memories; fine at the scale a single agent
// accumulates without a vector index.
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
		FROM memories WHERE embedding IS NULL LIMIT ?
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
	result, err := s.db.ExecContext(ctx, `UPDATE memories SET embedding = ?, updated_at = ? WHERE id = ?`, storage.EncodeEmbedding(embedding), time.Now(), id)
	if err != nil {
		return fmt.Errorf("update embedding: %w", err)
	}
	return requireRowsAffected(result, "memory not found: "+id)
}

func (s *Store) DeleteByAgent(ctx context.Context, agentIDs []string) (int, error) {
	total := 0
	for _, agentID := range agentIDs {
		result, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE agent_id = ?`, agentID)
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
		FROM memories WHERE agent_id = ?
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
