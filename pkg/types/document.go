package types

import "strings"

// DocType is the semantic category of an indexed document
type DocType string

const (
	DocTask          DocType = "task"
	DocMemory        DocType = "memory"
	DocDocumentation DocType = "documentation"
)

// Valid reports whether t is a known document type
func (t DocType) Valid() bool {
	switch t {
	case DocTask, DocMemory, DocDocumentation:
		return true
	}
	return false
}

// TaskStatus is the lifecycle state of a task
type TaskStatus string

const (
	StatusActive   TaskStatus = "ACTIVE"
	StatusPending  TaskStatus = "PENDING"
	StatusResolved TaskStatus = "RESOLVED"
	StatusArchived TaskStatus = "ARCHIVED"
)

// DefaultStatus is used when a task-status meta value is not recognized
const DefaultStatus = StatusPending

// ParseStatus uppercases s and validates it against the allowed statuses.
func ParseStatus(s string) (TaskStatus, bool) {
	st := TaskStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusActive, StatusPending, StatusResolved, StatusArchived:
		return st, true
	}
	return DefaultStatus, false
}

// StatusFromCategory maps a listing category ("active", "resolved", ...)
// to its task status.
func StatusFromCategory(category string) (TaskStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case "active", "active-tasks":
		return StatusActive, true
	case "pending", "pending-tasks":
		return StatusPending, true
	case "resolved", "resolved-tasks", "completed":
		return StatusResolved, true
	case "archived":
		return StatusArchived, true
	}
	return "", false
}

// Priority is the urgency of a task
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// DefaultPriority is used when a task-priority meta value is not recognized
const DefaultPriority = PriorityMedium

// ParsePriority uppercases s and validates it against the allowed priorities.
func ParsePriority(s string) (Priority, bool) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p, true
	}
	return DefaultPriority, false
}

// TaskKind distinguishes agent tasks from project tasks
type TaskKind string

const (
	TaskAgent   TaskKind = "AGENT"
	TaskProject TaskKind = "PROJECT"
)

// ParseTaskKind validates s as a task kind
func ParseTaskKind(s string) (TaskKind, bool) {
	k := TaskKind(strings.ToUpper(strings.TrimSpace(s)))
	switch k {
	case TaskAgent, TaskProject:
		return k, true
	}
	return TaskProject, false
}
