// Package observability provides audit logging for compliance tracking.
package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// AuditEventType categorizes audit events.
type AuditEventType string

const (
	AuditEventIndexStart     AuditEventType = "index.start"
	AuditEventIndexComplete  AuditEventType = "index.complete"
	AuditEventIndexError     AuditEventType = "index.error"
	AuditEventEmbedRequest   AuditEventType = "embed.request"
	AuditEventEmbedError     AuditEventType = "embed.error"
	AuditEventSearchQuery    AuditEventType = "search.query"
	AuditEventTaskIndexed    AuditEventType = "task.indexed"
	AuditEventEngineDisabled AuditEventType = "engine.disabled"
	AuditEventWorkflowStart  AuditEventType = "workflow.start"
	AuditEventWorkflowEnd    AuditEventType = "workflow.end"
)

// AuditEvent represents a single audit log entry.
type AuditEvent struct {
	Timestamp   time.Time              `json:"timestamp"`
	EventType   AuditEventType         `json:"event_type"`
	SessionID   string                 `json:"session_id"`
	WorkflowID  string                 `json:"workflow_id,omitempty"`
	UserID      string                 `json:"user_id,omitempty"`
	Success     bool                   `json:"success"`
	Duration    time.Duration          `json:"duration_ms,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
	ErrorDetail string                 `json:"error_detail,omitempty"`
}

// AuditLogger handles audit event logging.
type AuditLogger struct {
	mu        sync.Mutex
	writer    io.Writer
	sessionID string
	userID    string
	enabled   bool
}

// AuditConfig configures the audit logger.
type AuditConfig struct {
	Enabled    bool
	OutputPath string // File path or "stdout"/"stderr"
	SessionID  string
	UserID     string
}

// DefaultAuditConfig returns default audit configuration.
func DefaultAuditConfig() *AuditConfig {
	return &AuditConfig{
		Enabled:    true,
		OutputPath: "stdout",
	}
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(config *AuditConfig) (*AuditLogger, error) {
	if config == nil {
		config = DefaultAuditConfig()
	}

	var writer io.Writer
	switch config.OutputPath {
	case "stdout", "":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	default:
		f, err := os.OpenFile(config.OutputPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		writer = f
	}

	sessionID := config.SessionID
	if sessionID == "" {
		sessionID = fmt.Sprintf("session-%d", time.Now().UnixNano())
	}

	return &AuditLogger{
		writer:    writer,
		sessionID: sessionID,
		userID:    config.UserID,
		enabled:   config.Enabled,
	}, nil
}

// Log writes an audit event.
func (l *AuditLogger) Log(event *AuditEvent) error {
	if !l.enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Fill in defaults
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.SessionID == "" {
		event.SessionID = l.sessionID
	}
	if event.UserID == "" {
		event.UserID = l.userID
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	_, err = fmt.Fprintf(l.writer, "%s\n", data)
	return err
}

// LogIndexStart logs the start of an indexing pass.
func (l *AuditLogger) LogIndexStart(ctx context.Context, mode, repoPath, commit string) {
	l.Log(&AuditEvent{
		EventType: AuditEventIndexStart,
		Success:   true,
		Message:   fmt.Sprintf("%s index started", mode),
		Details: map[string]interface{}{
			"mode":      mode,
			"repo_path": repoPath,
			"commit":    commit,
		},
	})
}

// LogIndexComplete logs a finished indexing pass.
func (l *AuditLogger) LogIndexComplete(ctx context.Context, mode string, duration time.Duration, filesIndexed, filesDeleted, chunksWritten int) {
	l.Log(&AuditEvent{
		EventType: AuditEventIndexComplete,
		Success:   true,
		Duration:  duration,
		Message:   fmt.Sprintf("%s index completed", mode),
		Details: map[string]interface{}{
			"mode":           mode,
			"files_indexed":  filesIndexed,
			"files_deleted":  filesDeleted,
			"chunks_written": chunksWritten,
		},
	})
}

// LogIndexError logs a failed indexing pass.
func (l *AuditLogger) LogIndexError(ctx context.Context, mode string, err error) {
	l.Log(&AuditEvent{
		EventType:   AuditEventIndexError,
		Success:     false,
		Message:     fmt.Sprintf("%s index failed", mode),
		ErrorDetail: err.Error(),
		Details: map[string]interface{}{
			"mode": mode,
		},
	})
}

// LogEmbedRequest logs an embedding batch.
func (l *AuditLogger) LogEmbedRequest(ctx context.Context, provider string, textCount int, duration time.Duration) {
	l.Log(&AuditEvent{
		EventType: AuditEventEmbedRequest,
		Success:   true,
		Duration:  duration,
		Message:   fmt.Sprintf("Embedded %d texts via %s", textCount, provider),
		Details: map[string]interface{}{
			"provider":   provider,
			"text_count": textCount,
		},
	})
}

// LogEmbedError logs an embedding failure.
func (l *AuditLogger) LogEmbedError(ctx context.Context, provider string, err error) {
	l.Log(&AuditEvent{
		EventType:   AuditEventEmbedError,
		Success:     false,
		Message:     fmt.Sprintf("Embedding error from %s", provider),
		ErrorDetail: err.Error(),
		Details: map[string]interface{}{
			"provider": provider,
		},
	})
}

// LogSearchQuery logs a semantic query. The query text itself is not
// recorded; it may contain proprietary code.
func (l *AuditLogger) LogSearchQuery(ctx context.Context, collection string, hits int, duration time.Duration) {
	l.Log(&AuditEvent{
		EventType: AuditEventSearchQuery,
		Success:   true,
		Duration:  duration,
		Message:   fmt.Sprintf("Query against %s returned %d hits", collection, hits),
		Details: map[string]interface{}{
			"collection": collection,
			"hits":       hits,
		},
	})
}

// LogTaskIndexed logs a task outcome record write.
func (l *AuditLogger) LogTaskIndexed(ctx context.Context, taskID string) {
	l.Log(&AuditEvent{
		EventType: AuditEventTaskIndexed,
		Success:   true,
		Message:   fmt.Sprintf("Task %s outcome indexed", taskID),
		Details: map[string]interface{}{
			"task_id": taskID,
		},
	})
}

// LogEngineDisabled logs the engine entering its disabled state.
func (l *AuditLogger) LogEngineDisabled(ctx context.Context, reason error) {
	l.Log(&AuditEvent{
		EventType:   AuditEventEngineDisabled,
		Success:     false,
		Message:     "Semantic search disabled",
		ErrorDetail: reason.Error(),
	})
}

// LogWorkflowStart logs a workflow start event.
func (l *AuditLogger) LogWorkflowStart(ctx context.Context, workflowID, kind string) {
	l.Log(&AuditEvent{
		EventType:  AuditEventWorkflowStart,
		WorkflowID: workflowID,
		Success:    true,
		Message:    fmt.Sprintf("Workflow started: %s", kind),
		Details: map[string]interface{}{
			"kind": kind,
		},
	})
}

// LogWorkflowEnd logs a workflow completion event.
func (l *AuditLogger) LogWorkflowEnd(ctx context.Context, workflowID string, success bool, duration time.Duration) {
	l.Log(&AuditEvent{
		EventType:  AuditEventWorkflowEnd,
		WorkflowID: workflowID,
		Success:    success,
		Duration:   duration,
		Message:    "Workflow completed",
	})
}

// Close closes the audit logger (if using a file).
func (l *AuditLogger) Close() error {
	if closer, ok := l.writer.(io.Closer); ok {
		if closer != os.Stdout && closer != os.Stderr {
			return closer.Close()
		}
	}
	return nil
}

// Global audit logger instance
var globalAuditLogger *AuditLogger
var auditOnce sync.Once

// InitGlobalAuditLogger initializes the global audit logger.
func InitGlobalAuditLogger(config *AuditConfig) error {
	var err error
	auditOnce.Do(func() {
		globalAuditLogger, err = NewAuditLogger(config)
	})
	return err
}

// Audit returns the global audit logger.
func Audit() *AuditLogger {
	if globalAuditLogger == nil {
		// Return a disabled logger if not initialized
		return &AuditLogger{enabled: false}
	}
	return globalAuditLogger
}
