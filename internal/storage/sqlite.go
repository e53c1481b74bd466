package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dshills/docgraph/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// timeLayout is fixed width so that TEXT comparison orders chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

// IsConnectionError reports whether err means the database itself is
// unusable, as opposed to a problem with one statement.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// maxFileConns bounds the pool for file databases. In WAL mode readers
// proceed while one connection holds the write lock.
const maxFileConns = 8

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dsn(dbPath))
	if err != nil {
		return nil, err
	}

	// Every connection to an in-memory database is a separate database
	if isMemory(dbPath) {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(maxFileConns)
		db.SetMaxIdleConns(maxFileConns)
	}
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	return db, nil
}

func isMemory(dbPath string) bool {
	return dbPath == ":memory:" || strings.HasPrefix(dbPath, ":memory:?") || strings.Contains(dbPath, "mode=memory")
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) querier() querier {
	return t.tx
}

func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Document operations

const documentColumns = `d.id, d.path, d.title, d.content, d.doc_type, d.metadata, d.created_at, d.updated_at`

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	var docType, metadata, createdAt, updatedAt string
	if err := row.Scan(&doc.ID, &doc.Path, &doc.Title, &doc.Content, &docType, &metadata, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	doc.Type = types.DocType(docType)

	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for %s: %w", doc.Path, err)
		}
	}

	var err error
	if doc.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if doc.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &doc, nil
}

// upsertDocumentWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) upsertDocumentWithQuerier(ctx context.Context, q querier, doc *Document) error {
	if doc.Path == "" {
		return types.ErrMissingPath
	}
	if !doc.Type.Valid() {
		return fmt.Errorf("invalid document type %q", doc.Type)
	}

	meta := doc.Metadata
	if meta == nil {
		meta = types.Metadata{}
	}
	encoded, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	// Use atomic INSERT ... ON CONFLICT so id and created_at survive re-indexing
	query := `
		INSERT INTO documents (path, title, content, doc_type, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			doc_type = excluded.doc_type,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
		RETURNING id, created_at
	`
	now := time.Now().UTC()
	stamp := formatTime(now)
	var createdAt string
	err = q.QueryRowContext(ctx, query,
		doc.Path, doc.Title, doc.Content, string(doc.Type), string(encoded), stamp, stamp,
	).Scan(&doc.ID, &createdAt)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	if doc.CreatedAt, err = parseTime(createdAt); err != nil {
		return err
	}
	doc.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertDocument(ctx context.Context, doc *Document) error {
	return s.upsertDocumentWithQuerier(ctx, s.querier(), doc)
}

func (s *SQLiteStorage) getDocumentWithQuerier(ctx context.Context, q querier, id int64) (*Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents d WHERE d.id = ?`
	doc, err := scanDocument(q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return doc, err
}

func (s *SQLiteStorage) GetDocument(ctx context.Context, id int64) (*Document, error) {
	return s.getDocumentWithQuerier(ctx, s.querier(), id)
}

func (s *SQLiteStorage) getDocumentByPathWithQuerier(ctx context.Context, q querier, path string) (*Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents d WHERE d.path = ?`
	doc, err := scanDocument(q.QueryRowContext(ctx, query, path))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return doc, err
}

func (s *SQLiteStorage) GetDocumentByPath(ctx context.Context, path string) (*Document, error) {
	return s.getDocumentByPathWithQuerier(ctx, s.querier(), path)
}

func (s *SQLiteStorage) listDocumentsWithQuerier(ctx context.Context, q querier) ([]*Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents d ORDER BY d.id`
	return collectDocuments(ctx, q, query)
}

func (s *SQLiteStorage) ListDocuments(ctx context.Context) ([]*Document, error) {
	return s.listDocumentsWithQuerier(ctx, s.querier())
}

func collectDocuments(ctx context.Context, q querier, query string, args ...interface{}) ([]*Document, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	docs := make([]*Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// queryDocumentsWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) queryDocumentsWithQuerier(ctx context.Context, q querier, filter DocumentFilter) (*DocumentPage, error) {
	var where []string
	var args []interface{}

	if filter.Type != "" {
		where = append(where, "d.doc_type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Status != "" {
		where = append(where, "EXISTS (SELECT 1 FROM tasks t WHERE t.file_path = d.path AND t.status = ?)")
		args = append(args, string(filter.Status))
	}
	for _, tag := range filter.Tags {
		where = append(where, `EXISTS (
			SELECT 1 FROM document_tags dt JOIN tags g ON g.id = dt.tag_id
			WHERE dt.document_id = d.id AND g.name = ?)`)
		args = append(args, tag)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := likePattern(search)
		where = append(where, `(d.title LIKE ? ESCAPE '\' OR d.content LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	page := &DocumentPage{Limit: filter.Limit, Offset: filter.Offset}
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents d`+clause, args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + documentColumns + ` FROM documents d` + clause +
		` ORDER BY d.updated_at DESC, d.id DESC LIMIT ? OFFSET ?`
	docs, err := collectDocuments(ctx, q, query, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}

	if err := attachTags(ctx, q, docs); err != nil {
		return nil, err
	}
	page.Documents = docs
	return page, nil
}

func (s *SQLiteStorage) QueryDocuments(ctx context.Context, filter DocumentFilter) (*DocumentPage, error) {
	return s.queryDocumentsWithQuerier(ctx, s.querier(), filter)
}

// attachTags fills Document.Tags for a page in a single query. It must run
// after the page rows are closed, since the pool holds one connection.
func attachTags(ctx context.Context, q querier, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	byID := make(map[int64]*Document, len(docs))
	placeholders := make([]string, len(docs))
	args := make([]interface{}, len(docs))
	for i, doc := range docs {
		doc.Tags = []string{}
		byID[doc.ID] = doc
		placeholders[i] = "?"
		args[i] = doc.ID
	}

	query := `
		SELECT dt.document_id, g.name
		FROM document_tags dt
		JOIN tags g ON g.id = dt.tag_id
		WHERE dt.document_id IN (` + strings.Join(placeholders, ",") + `)
		ORDER BY g.name
	`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to load document tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var docID int64
		var name string
		if err := rows.Scan(&docID, &name); err != nil {
			return err
		}
		if doc, ok := byID[docID]; ok {
			doc.Tags = append(doc.Tags, name)
		}
	}
	return rows.Err()
}

func (s *SQLiteStorage) deleteDocumentWithQuerier(ctx context.Context, q querier, id int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	return err
}

func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id int64) error {
	return s.deleteDocumentWithQuerier(ctx, s.querier(), id)
}

// Tag operations

func scanTag(row rowScanner) (*Tag, error) {
	var tag Tag
	var color sql.NullString
	var createdAt string
	if err := row.Scan(&tag.ID, &tag.Name, &color, &createdAt); err != nil {
		return nil, err
	}
	if color.Valid {
		tag.Color = &color.String
	}
	var err error
	if tag.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &tag, nil
}

func (s *SQLiteStorage) getTagByNameWithQuerier(ctx context.Context, q querier, name string) (*Tag, error) {
	tag, err := scanTag(q.QueryRowContext(ctx,
		`SELECT id, name, color, created_at FROM tags WHERE name = ?`, name))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return tag, err
}

func (s *SQLiteStorage) GetTagByName(ctx context.Context, name string) (*Tag, error) {
	return s.getTagByNameWithQuerier(ctx, s.querier(), name)
}

// getOrCreateTagWithQuerier looks the tag up first and only inserts when it
// is absent. A concurrent insert of the same name is absorbed by ON CONFLICT
// and the second lookup returns the winner's row.
func (s *SQLiteStorage) getOrCreateTagWithQuerier(ctx context.Context, q querier, name string) (*Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("tag name is required")
	}

	tag, err := s.getTagByNameWithQuerier(ctx, q, name)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO tags (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, formatTime(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("failed to create tag %s: %w", name, err)
	}
	return s.getTagByNameWithQuerier(ctx, q, name)
}

func (s *SQLiteStorage) GetOrCreateTag(ctx context.Context, name string) (*Tag, error) {
	return s.getOrCreateTagWithQuerier(ctx, s.querier(), name)
}

func (s *SQLiteStorage) listTagsWithQuerier(ctx context.Context, q querier) ([]*Tag, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, color, created_at FROM tags ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	tags := make([]*Tag, 0)
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (s *SQLiteStorage) ListTags(ctx context.Context) ([]*Tag, error) {
	return s.listTagsWithQuerier(ctx, s.querier())
}

// setLinksWithQuerier replaces the rows of a (owner, tag) join table.
func setLinksWithQuerier(ctx context.Context, q querier, table, ownerColumn string, ownerID int64, tagIDs []int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM `+table+` WHERE `+ownerColumn+` = ?`, ownerID); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}
	insert := `INSERT OR IGNORE INTO ` + table + ` (` + ownerColumn + `, tag_id) VALUES (?, ?)`
	for _, tagID := range tagIDs {
		if _, err := q.ExecContext(ctx, insert, ownerID, tagID); err != nil {
			return fmt.Errorf("failed to link tag %d: %w", tagID, err)
		}
	}
	return nil
}

func (s *SQLiteStorage) SetDocumentTags(ctx context.Context, documentID int64, tagIDs []int64) error {
	return setLinksWithQuerier(ctx, s.querier(), "document_tags", "document_id", documentID, tagIDs)
}

func (s *SQLiteStorage) listDocumentTagsWithQuerier(ctx context.Context, q querier, documentID int64) ([]*Tag, error) {
	query := `
		SELECT g.id, g.name, g.color, g.created_at
		FROM tags g
		JOIN document_tags dt ON dt.tag_id = g.id
		WHERE dt.document_id = ?
		ORDER BY g.name
	`
	rows, err := q.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	tags := make([]*Tag, 0)
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (s *SQLiteStorage) ListDocumentTags(ctx context.Context, documentID int64) ([]*Tag, error) {
	return s.listDocumentTagsWithQuerier(ctx, s.querier(), documentID)
}

// Task operations

const taskColumns = `id, file_path, title, description, status, priority, task_type, created_at, updated_at`

func scanTask(row rowScanner) (*Task, error) {
	var task Task
	var status, priority, kind, createdAt, updatedAt string
	err := row.Scan(&task.ID, &task.FilePath, &task.Title, &task.Description,
		&status, &priority, &kind, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	task.Status = types.TaskStatus(status)
	task.Priority = types.Priority(priority)
	task.Kind = types.TaskKind(kind)
	if task.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if task.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *SQLiteStorage) upsertTaskWithQuerier(ctx context.Context, q querier, task *Task) error {
	if task.FilePath == "" {
		return types.ErrMissingPath
	}
	if task.Status == "" {
		task.Status = types.DefaultStatus
	}
	if task.Priority == "" {
		task.Priority = types.DefaultPriority
	}
	if task.Kind == "" {
		task.Kind = types.TaskProject
	}

	query := `
		INSERT INTO tasks (file_path, title, description, status, priority, task_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			status = excluded.status,
			priority = excluded.priority,
			task_type = excluded.task_type,
			updated_at = excluded.updated_at
		RETURNING id, created_at
	`
	now := time.Now().UTC()
	stamp := formatTime(now)
	var createdAt string
	err := q.QueryRowContext(ctx, query,
		task.FilePath, task.Title, task.Description,
		string(task.Status), string(task.Priority), string(task.Kind), stamp, stamp,
	).Scan(&task.ID, &createdAt)
	if err != nil {
		return fmt.Errorf("failed to upsert task: %w", err)
	}

	if task.CreatedAt, err = parseTime(createdAt); err != nil {
		return err
	}
	task.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertTask(ctx context.Context, task *Task) error {
	return s.upsertTaskWithQuerier(ctx, s.querier(), task)
}

func (s *SQLiteStorage) getTaskByPathWithQuerier(ctx context.Context, q querier, filePath string) (*Task, error) {
	task, err := scanTask(q.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE file_path = ?`, filePath))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return task, err
}

func (s *SQLiteStorage) GetTaskByPath(ctx context.Context, filePath string) (*Task, error) {
	return s.getTaskByPathWithQuerier(ctx, s.querier(), filePath)
}

func (s *SQLiteStorage) listTasksByStatusWithQuerier(ctx context.Context, q querier, status types.TaskStatus) ([]*Task, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE status = ? ORDER BY updated_at DESC, id DESC`,
		string(status))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]*Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (s *SQLiteStorage) ListTasksByStatus(ctx context.Context, status types.TaskStatus) ([]*Task, error) {
	return s.listTasksByStatusWithQuerier(ctx, s.querier(), status)
}

func (s *SQLiteStorage) SetTaskTags(ctx context.Context, taskID int64, tagIDs []int64) error {
	return setLinksWithQuerier(ctx, s.querier(), "task_tags", "task_id", taskID, tagIDs)
}

// Memory operations

func (s *SQLiteStorage) appendMemoryWithQuerier(ctx context.Context, q querier, memory *Memory) error {
	var entryTime interface{}
	if memory.EntryTime != nil {
		entryTime = formatTime(*memory.EntryTime)
	}

	now := time.Now().UTC()
	result, err := q.ExecContext(ctx, `
		INSERT INTO memories (document_id, heading, content, entry_time, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, memory.DocumentID, memory.Heading, memory.Content, entryTime, formatTime(now))
	if err != nil {
		return fmt.Errorf("failed to append memory: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	memory.ID = id
	memory.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) AppendMemory(ctx context.Context, memory *Memory) error {
	return s.appendMemoryWithQuerier(ctx, s.querier(), memory)
}

func (s *SQLiteStorage) listMemoriesWithQuerier(ctx context.Context, q querier, documentID int64) ([]*Memory, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, document_id, heading, content, entry_time, created_at
		FROM memories
		WHERE document_id = ?
		ORDER BY id
	`, documentID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	memories := make([]*Memory, 0)
	for rows.Next() {
		var m Memory
		var entryTime sql.NullString
		var createdAt string
		if err := rows.Scan(&m.ID, &m.DocumentID, &m.Heading, &m.Content, &entryTime, &createdAt); err != nil {
			return nil, err
		}
		if entryTime.Valid {
			t, err := parseTime(entryTime.String)
			if err != nil {
				return nil, err
			}
			m.EntryTime = &t
		}
		if m.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		memories = append(memories, &m)
	}
	return memories, rows.Err()
}

func (s *SQLiteStorage) ListMemories(ctx context.Context, documentID int64) ([]*Memory, error) {
	return s.listMemoriesWithQuerier(ctx, s.querier(), documentID)
}

// Reference operations

// replaceReferencesWithQuerier drops every stored reference and inserts
// refs, keeping the first of any (source, target, type) duplicates.
func (s *SQLiteStorage) replaceReferencesWithQuerier(ctx context.Context, q querier, refs []Reference) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM doc_references`); err != nil {
		return fmt.Errorf("failed to clear references: %w", err)
	}

	type refKey struct {
		source, target int64
		kind           string
	}
	seen := make(map[refKey]struct{}, len(refs))
	stamp := formatTime(time.Now())

	for _, ref := range refs {
		key := refKey{ref.SourceID, ref.TargetID, ref.Type}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		_, err := q.ExecContext(ctx, `
			INSERT INTO doc_references (source_id, target_id, ref_type, weight, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, ref.SourceID, ref.TargetID, ref.Type, ref.Weight, stamp)
		if err != nil {
			return fmt.Errorf("failed to insert reference %d->%d: %w", ref.SourceID, ref.TargetID, err)
		}
	}
	return nil
}

// ReplaceReferences swaps the reference set atomically.
func (s *SQLiteStorage) ReplaceReferences(ctx context.Context, refs []Reference) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.replaceReferencesWithQuerier(ctx, tx, refs); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) listReferencesWithQuerier(ctx context.Context, q querier) ([]Reference, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT source_id, target_id, ref_type, weight
		FROM doc_references
		ORDER BY source_id, target_id, ref_type
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	refs := make([]Reference, 0)
	for rows.Next() {
		var ref Reference
		if err := rows.Scan(&ref.SourceID, &ref.TargetID, &ref.Type, &ref.Weight); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (s *SQLiteStorage) ListReferences(ctx context.Context) ([]Reference, error) {
	return s.listReferencesWithQuerier(ctx, s.querier())
}

// Maintenance operations

// pruneSessionLogsWithQuerier keeps the newest keep memory documents.
// Session logs live under year/month/day so path order is date order.
func (s *SQLiteStorage) pruneSessionLogsWithQuerier(ctx context.Context, q querier, keep int) (int, error) {
	if keep < 0 {
		return 0, fmt.Errorf("keep must be >= 0, got %d", keep)
	}

	rows, err := q.QueryContext(ctx, `SELECT id, path FROM documents WHERE doc_type = ?`, string(types.DocMemory))
	if err != nil {
		return 0, fmt.Errorf("failed to list session logs: %w", err)
	}
	var logs []sessionLog
	for rows.Next() {
		var l sessionLog
		if err := rows.Scan(&l.id, &l.path); err != nil {
			_ = rows.Close()
			return 0, err
		}
		l.day, l.dated = types.SessionDate(l.path)
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, err
	}
	_ = rows.Close()

	if len(logs) <= keep {
		return 0, nil
	}
	sortNewestFirst(logs)

	removed := 0
	for _, l := range logs[keep:] {
		if _, err := q.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, l.id); err != nil {
			return removed, fmt.Errorf("failed to prune session log %s: %w", l.path, err)
		}
		removed++
	}
	return removed, nil
}

// sessionLog is a memory document ordered by the day in its path
type sessionLog struct {
	id    int64
	path  string
	day   time.Time
	dated bool
}

// sortNewestFirst orders logs by the parsed calendar day, newest first;
// unpadded month and day segments compare as numbers. Paths without a day
// sort after every dated log, by path descending.
func sortNewestFirst(logs []sessionLog) {
	slices.SortStableFunc(logs, func(a, b sessionLog) int {
		switch {
		case a.dated && !b.dated:
			return -1
		case !a.dated && b.dated:
			return 1
		case a.dated && !a.day.Equal(b.day):
			return b.day.Compare(a.day)
		}
		return strings.Compare(b.path, a.path)
	})
}

func (s *SQLiteStorage) PruneSessionLogs(ctx context.Context, keep int) (n int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if n, err = s.pruneSessionLogsWithQuerier(ctx, tx, keep); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

// Status operations

func (s *SQLiteStorage) getStatusWithQuerier(ctx context.Context, q querier) (*StoreStatus, error) {
	status := &StoreStatus{DocumentsByType: make(map[types.DocType]int)}

	rows, err := q.QueryContext(ctx, `SELECT doc_type, COUNT(*) FROM documents GROUP BY doc_type`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var docType string
		var count int
		if err := rows.Scan(&docType, &count); err != nil {
			_ = rows.Close()
			return nil, err
		}
		status.DocumentsByType[types.DocType(docType)] = count
		status.DocumentsCount += count
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM tasks", &status.TasksCount},
		{"SELECT COUNT(*) FROM tags", &status.TagsCount},
		{"SELECT COUNT(*) FROM memories", &status.MemoriesCount},
		{"SELECT COUNT(*) FROM doc_references", &status.ReferencesCount},
	}
	for _, c := range counts {
		if err := q.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, err
		}
	}

	var lastUpdated sql.NullString
	if err := q.QueryRowContext(ctx, `SELECT MAX(updated_at) FROM documents`).Scan(&lastUpdated); err != nil {
		return nil, err
	}
	if lastUpdated.Valid {
		if status.LastUpdatedAt, err = parseTime(lastUpdated.String); err != nil {
			return nil, err
		}
	}

	// Calculate database size
	var pageCount, pageSize int
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	var ftsName string
	ftsErr := q.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='documents_fts'").Scan(&ftsName)

	status.Health = HealthStatus{
		DatabaseAccessible: true,
		FTSIndexBuilt:      ftsErr == nil,
	}
	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*StoreStatus, error) {
	return s.getStatusWithQuerier(ctx, s.querier())
}

// Search operations

func (s *SQLiteStorage) SearchText(ctx context.Context, ftsQuery string, limit int) ([]TextResult, error) {
	return searchText(ctx, s.querier(), ftsQuery, limit)
}

func (s *SQLiteStorage) SearchLike(ctx context.Context, words []string, limit int) ([]TextResult, error) {
	return searchLike(ctx, s.querier(), words, limit)
}

// Transaction implementations delegate to the storage helpers with the
// transaction as querier.

func (t *sqliteTx) UpsertDocument(ctx context.Context, doc *Document) error {
	return t.storage.upsertDocumentWithQuerier(ctx, t.querier(), doc)
}

func (t *sqliteTx) GetDocument(ctx context.Context, id int64) (*Document, error) {
	return t.storage.getDocumentWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) GetDocumentByPath(ctx context.Context, path string) (*Document, error) {
	return t.storage.getDocumentByPathWithQuerier(ctx, t.querier(), path)
}

func (t *sqliteTx) ListDocuments(ctx context.Context) ([]*Document, error) {
	return t.storage.listDocumentsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) QueryDocuments(ctx context.Context, filter DocumentFilter) (*DocumentPage, error) {
	return t.storage.queryDocumentsWithQuerier(ctx, t.querier(), filter)
}

func (t *sqliteTx) DeleteDocument(ctx context.Context, id int64) error {
	return t.storage.deleteDocumentWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) GetOrCreateTag(ctx context.Context, name string) (*Tag, error) {
	return t.storage.getOrCreateTagWithQuerier(ctx, t.querier(), name)
}

func (t *sqliteTx) GetTagByName(ctx context.Context, name string) (*Tag, error) {
	return t.storage.getTagByNameWithQuerier(ctx, t.querier(), name)
}

func (t *sqliteTx) ListTags(ctx context.Context) ([]*Tag, error) {
	return t.storage.listTagsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) SetDocumentTags(ctx context.Context, documentID int64, tagIDs []int64) error {
	return setLinksWithQuerier(ctx, t.querier(), "document_tags", "document_id", documentID, tagIDs)
}

func (t *sqliteTx) ListDocumentTags(ctx context.Context, documentID int64) ([]*Tag, error) {
	return t.storage.listDocumentTagsWithQuerier(ctx, t.querier(), documentID)
}

func (t *sqliteTx) UpsertTask(ctx context.Context, task *Task) error {
	return t.storage.upsertTaskWithQuerier(ctx, t.querier(), task)
}

func (t *sqliteTx) GetTaskByPath(ctx context.Context, filePath string) (*Task, error) {
	return t.storage.getTaskByPathWithQuerier(ctx, t.querier(), filePath)
}

func (t *sqliteTx) ListTasksByStatus(ctx context.Context, status types.TaskStatus) ([]*Task, error) {
	return t.storage.listTasksByStatusWithQuerier(ctx, t.querier(), status)
}

func (t *sqliteTx) SetTaskTags(ctx context.Context, taskID int64, tagIDs []int64) error {
	return setLinksWithQuerier(ctx, t.querier(), "task_tags", "task_id", taskID, tagIDs)
}

func (t *sqliteTx) AppendMemory(ctx context.Context, memory *Memory) error {
	return t.storage.appendMemoryWithQuerier(ctx, t.querier(), memory)
}

func (t *sqliteTx) ListMemories(ctx context.Context, documentID int64) ([]*Memory, error) {
	return t.storage.listMemoriesWithQuerier(ctx, t.querier(), documentID)
}

func (t *sqliteTx) ReplaceReferences(ctx context.Context, refs []Reference) error {
	return t.storage.replaceReferencesWithQuerier(ctx, t.querier(), refs)
}

func (t *sqliteTx) ListReferences(ctx context.Context) ([]Reference, error) {
	return t.storage.listReferencesWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) SearchText(ctx context.Context, ftsQuery string, limit int) ([]TextResult, error) {
	return searchText(ctx, t.querier(), ftsQuery, limit)
}

func (t *sqliteTx) SearchLike(ctx context.Context, words []string, limit int) ([]TextResult, error) {
	return searchLike(ctx, t.querier(), words, limit)
}

func (t *sqliteTx) PruneSessionLogs(ctx context.Context, keep int) (int, error) {
	return t.storage.pruneSessionLogsWithQuerier(ctx, t.querier(), keep)
}

func (t *sqliteTx) GetStatus(ctx context.Context) (*StoreStatus, error) {
	return t.storage.getStatusWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}
