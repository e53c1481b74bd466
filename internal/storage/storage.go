package storage

import (
	"context"
	"time"

	"github.com/dshills/docgraph/pkg/types"
)

// Storage defines the interface for persisting and querying indexed documents
type Storage interface {
	// Document operations
	UpsertDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id int64) (*Document, error)
	GetDocumentByPath(ctx context.Context, path string) (*Document, error)
	ListDocuments(ctx context.Context) ([]*Document, error)
	QueryDocuments(ctx context.Context, filter DocumentFilter) (*DocumentPage, error)
	DeleteDocument(ctx context.Context, id int64) error

	// Tag operations
	GetOrCreateTag(ctx context.Context, name string) (*Tag, error)
	GetTagByName(ctx context.Context, name string) (*Tag, error)
	ListTags(ctx context.Context) ([]*Tag, error)
	SetDocumentTags(ctx context.Context, documentID int64, tagIDs []int64) error
	ListDocumentTags(ctx context.Context, documentID int64) ([]*Tag, error)

	// Task operations
	UpsertTask(ctx context.Context, task *Task) error
	GetTaskByPath(ctx context.Context, filePath string) (*Task, error)
	ListTasksByStatus(ctx context.Context, status types.TaskStatus) ([]*Task, error)
	SetTaskTags(ctx context.Context, taskID int64, tagIDs []int64) error

	// Memory operations
	AppendMemory(ctx context.Context, memory *Memory) error
	ListMemories(ctx context.Context, documentID int64) ([]*Memory, error)

	// Reference operations
	ReplaceReferences(ctx context.Context, refs []Reference) error
	ListReferences(ctx context.Context) ([]Reference, error)

	// Search operations
	SearchText(ctx context.Context, ftsQuery string, limit int) ([]TextResult, error)
	SearchLike(ctx context.Context, words []string, limit int) ([]TextResult, error)

	// Maintenance operations
	PruneSessionLogs(ctx context.Context, keep int) (int, error)
	GetStatus(ctx context.Context) (*StoreStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Document represents one indexed HTML source file
type Document struct {
	ID        int64
	Path      string // Relative, slash-separated; unique
	Title     string
	Content   string // Plain text, markup stripped
	Type      types.DocType
	Metadata  types.Metadata
	Tags      []string // Populated by QueryDocuments
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Tag is a named label shared across documents and tasks
type Tag struct {
	ID        int64
	Name      string
	Color     *string // Nullable
	CreatedAt time.Time
}

// Task is the status-bearing record kept alongside a task document
type Task struct {
	ID          int64
	FilePath    string
	Title       string
	Description string
	Status      types.TaskStatus
	Priority    types.Priority
	Kind        types.TaskKind
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Memory is an append-only observation taken from a session-log document
type Memory struct {
	ID         int64
	DocumentID int64
	Heading    string
	Content    string
	EntryTime  *time.Time // Nullable
	CreatedAt  time.Time
}

// Reference is an inferred, weighted, directed edge between two documents
type Reference struct {
	SourceID int64
	TargetID int64
	Type     string
	Weight   float64
}

// DocumentFilter narrows QueryDocuments
type DocumentFilter struct {
	Type   types.DocType
	Status types.TaskStatus
	Tags   []string // Documents must carry every tag
	Search string   // Substring match on title or content
	Limit  int
	Offset int
}

// DocumentPage is one page of a filtered document query
type DocumentPage struct {
	Total     int // Filtered count before pagination
	Documents []*Document
	Limit     int
	Offset    int
}

// TextResult represents a result from full-text or substring search
type TextResult struct {
	DocumentID int64
	Path       string
	Title      string
	Content    string
	BM25Score  float64 // Lower is better; zero for substring matches
}

// StoreStatus contains statistics about the store
type StoreStatus struct {
	DocumentsByType map[types.DocType]int
	DocumentsCount  int
	TasksCount      int
	TagsCount       int
	MemoriesCount   int
	ReferencesCount int
	IndexSizeMB     float64
	LastUpdatedAt   time.Time
	Health          HealthStatus
}

// HealthStatus represents the health of the store
type HealthStatus struct {
	DatabaseAccessible bool
	FTSIndexBuilt      bool
}
