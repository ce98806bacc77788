package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileLogger implements audit logging to local files as JSON lines. It is
// the audit sink for single-node installs that run without PostgreSQL.
type FileLogger struct {
	mu       sync.Mutex
	file     *os.File
	encoder  *json.Encoder
	basePath string
	rotate   bool
	maxSize  int64
	maxFiles int
	curSize  int64
}

// FileLoggerConfig contains configuration for file-based logging
type FileLoggerConfig struct {
	BasePath string // Base directory for log files
	Rotate   bool   // Whether to rotate logs
	MaxSize  int64  // Max size per file in bytes (default 100MB)
	MaxFiles int    // Max number of rotated files to keep (default 10)
}

// DefaultFileLoggerConfig returns default configuration
func DefaultFileLoggerConfig() FileLoggerConfig {
	return FileLoggerConfig{
		BasePath: "/var/log/lantern/audit",
		Rotate:   true,
		MaxSize:  100 * 1024 * 1024, // 100MB
		MaxFiles: 10,
	}
}

// NewFileLogger creates a new file-based audit logger
func NewFileLogger(config FileLoggerConfig) (*FileLogger, error) {
	if config.BasePath == "" {
		config.BasePath = DefaultFileLoggerConfig().BasePath
	}
	if config.MaxSize == 0 {
		config.MaxSize = DefaultFileLoggerConfig().MaxSize
	}
	if config.MaxFiles == 0 {
		config.MaxFiles = DefaultFileLoggerConfig().MaxFiles
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	logger := &FileLogger{
		basePath: config.BasePath,
		rotate:   config.Rotate,
		maxSize:  config.MaxSize,
		maxFiles: config.MaxFiles,
	}

	if err := logger.openLogFile(); err != nil {
		return nil, err
	}

	return logger, nil
}

// openLogFile opens the current log file
func (l *FileLogger) openLogFile() error {
	filename := filepath.Join(l.basePath, "audit.log")

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat audit log file: %w", err)
	}

	l.file = file
	l.encoder = json.NewEncoder(file)
	l.curSize = info.Size()

	return nil
}

// rotateFile rotates the current log file
func (l *FileLogger) rotateFile() error {
	if l.file != nil {
		l.file.Close()
	}

	// Rename current file with timestamp
	oldPath := filepath.Join(l.basePath, "audit.log")
	newPath := filepath.Join(l.basePath, fmt.Sprintf("audit-%s.log", time.Now().UTC().Format("20060102-150405")))

	if err := os.Rename(oldPath, newPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to rotate audit log: %w", err)
	}

	if err := l.cleanupOldFiles(); err != nil {
		return err
	}

	return l.openLogFile()
}

// cleanupOldFiles removes rotated files beyond the retention count
func (l *FileLogger) cleanupOldFiles() error {
	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		return fmt.Errorf("failed to read audit log directory: %w", err)
	}

	var rotated []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "audit-") && strings.HasSuffix(name, ".log") {
			rotated = append(rotated, name)
		}
	}

	if len(rotated) <= l.maxFiles {
		return nil
	}

	// Timestamped names sort chronologically, oldest first
	sort.Strings(rotated)

	for _, name := range rotated[:len(rotated)-l.maxFiles] {
		if err := os.Remove(filepath.Join(l.basePath, name)); err != nil {
			return fmt.Errorf("failed to remove old audit log %s: %w", name, err)
		}
	}

	return nil
}

// Log logs an audit event to the file
func (l *FileLogger) Log(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rotate && l.curSize >= l.maxSize {
		if err := l.rotateFile(); err != nil {
			return err
		}
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}

	// Approximate; the encoder adds a trailing newline per event
	data, _ := json.Marshal(event)
	l.curSize += int64(len(data)) + 1

	return nil
}

// LogAuthentication logs an authentication event
func (l *FileLogger) LogAuthentication(ctx context.Context, eventType EventType, email string, status EventStatus, message string) error {
	event := buildBaseEvent(ctx, nil, eventType, status)
	event.ActorEmail = email
	event.Message = message
	event.ResourceType = ResourceTypeUser

	return l.Log(ctx, event)
}

// LogAuthorization logs an access evaluation event
func (l *FileLogger) LogAuthorization(ctx context.Context, eventType EventType, actorEmail string, resourceType ResourceType, resourceID string, status EventStatus, message string) error {
	event := buildBaseEvent(ctx, nil, eventType, status)
	event.ActorEmail = actorEmail
	event.ResourceType = resourceType
	event.ResourceID = resourceID
	event.Message = message

	return l.Log(ctx, event)
}

// LogAdminAction logs an admin action against a target user
func (l *FileLogger) LogAdminAction(ctx context.Context, eventType EventType, actorEmail, targetEmail string, changes *ChangeDetails, message string) error {
	event := buildBaseEvent(ctx, nil, eventType, EventStatusSuccess)
	event.ActorEmail = actorEmail
	event.TargetEmail = targetEmail
	event.ResourceType = ResourceTypeProfile
	event.ResourceID = targetEmail
	event.Changes = changes
	event.Message = message

	return l.Log(ctx, event)
}

// LogDataMutation logs a data mutation event
func (l *FileLogger) LogDataMutation(ctx context.Context, eventType EventType, actorEmail string, resourceType ResourceType, resourceID string, changes *ChangeDetails, message string) error {
	event := buildBaseEvent(ctx, nil, eventType, EventStatusSuccess)
	event.ActorEmail = actorEmail
	event.ResourceType = resourceType
	event.ResourceID = resourceID
	event.Changes = changes
	event.Message = message

	return l.Log(ctx, event)
}

// LogHTTPRequest logs an HTTP request
func (l *FileLogger) LogHTTPRequest(ctx context.Context, r *http.Request, statusCode int, duration time.Duration, err error) error {
	eventType := EventTypeAccessDocumentRead
	status := EventStatusSuccess

	if statusCode >= 400 {
		status = EventStatusFailure
	}
	if statusCode == http.StatusForbidden {
		status = EventStatusDenied
	}

	event := buildBaseEvent(ctx, r, eventType, status)
	event.StatusCode = statusCode
	event.Metadata["duration_ms"] = duration.Milliseconds()

	if err != nil {
		event.ErrorMessage = err.Error()
	}

	return l.Log(ctx, event)
}

// ReadLogs reads audit events from the current log file, applying the
// filter in memory. It exists for operators inspecting a single-node
// install; anything heavier should query the database sink.
func (l *FileLogger) ReadLogs(filter SearchFilter) ([]*Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	filename := filepath.Join(l.basePath, "audit.log")
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Event{}, nil
		}
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer file.Close()

	var events []*Event
	scanner := bufio.NewScanner(file)
	// Events with large metadata payloads can exceed the default buffer
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		event, err := FromJSON(line)
		if err != nil {
			// Skip unparseable lines rather than failing the whole read
			continue
		}

		if !matchesFilter(event, filter) {
			continue
		}

		events = append(events, event)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}

	// Newest first, matching the database sink's default order
	sort.Slice(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(events) {
			return []*Event{}, nil
		}
		events = events[filter.Offset:]
	}

	if filter.Limit > 0 && len(events) > filter.Limit {
		events = events[:filter.Limit]
	}

	return events, nil
}

// matchesFilter reports whether an event satisfies the filter fields that
// make sense for file-backed reads.
func matchesFilter(event *Event, filter SearchFilter) bool {
	if filter.StartTime != nil && event.Timestamp.Before(*filter.StartTime) {
		return false
	}
	if filter.EndTime != nil && event.Timestamp.After(*filter.EndTime) {
		return false
	}
	if filter.ActorEmail != "" && event.ActorEmail != filter.ActorEmail {
		return false
	}
	if filter.TargetEmail != "" && event.TargetEmail != filter.TargetEmail {
		return false
	}
	if len(filter.EventTypes) > 0 {
		found := false
		for _, et := range filter.EventTypes {
			if event.EventType == et {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.Status != nil && event.Status != *filter.Status {
		return false
	}
	if filter.ResourceType != "" && event.ResourceType != filter.ResourceType {
		return false
	}
	if filter.ResourceID != "" && event.ResourceID != filter.ResourceID {
		return false
	}
	return true
}

// Close closes the file logger
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}
