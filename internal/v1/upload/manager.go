// Package upload ingests chunked binary uploads from the duplex channel and
// reassembles them into files under the uploads directory. Sessions are owned
// by their originating connection; disk writes happen under each session's
// own lock, never under room or manager locks.
package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/huddlekit/huddle/internal/v1/events"
	"github.com/huddlekit/huddle/internal/v1/logging"
	"github.com/huddlekit/huddle/internal/v1/metrics"
	"go.uber.org/zap"
)

// MaxFileSize caps a single upload at 25 MiB, enforced against the declared
// size at start and against cumulative bytes on every chunk.
const MaxFileSize = 25 << 20

var (
	ErrInvalidSize   = errors.New("invalid upload size")
	ErrUnknownUpload = errors.New("unknown upload")
	ErrClosed        = errors.New("upload already closed")
	ErrEmptyChunk    = errors.New("empty chunk")
	ErrFileExceeded  = errors.New("file size exceeded")
	ErrWriteFailed   = errors.New("write failed")
)

// ErrorCode maps a session error to its wire form for acks.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidSize):
		return "InvalidSize"
	case errors.Is(err, ErrUnknownUpload):
		return "UnknownUpload"
	case errors.Is(err, ErrClosed):
		return "Closed"
	case errors.Is(err, ErrEmptyChunk):
		return "EmptyChunk"
	case errors.Is(err, ErrFileExceeded):
		return "FileExceeded"
	case errors.Is(err, ErrWriteFailed):
		return "WriteFailed"
	default:
		return "UploadFailed"
	}
}

// Session is the stateful ingestion of one file over many chunks.
type Session struct {
	ID           string
	OwnerID      string
	RoomCode     string
	OriginalName string
	MimeType     string
	DeclaredSize int64

	mu       sync.Mutex
	received int64
	filename string
	path     string
	file     *os.File
	closed   bool
}

// Received returns the bytes ingested so far.
func (s *Session) Received() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received
}

// Manager tracks every open upload session in the process.
type Manager struct {
	dir string

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates the uploads directory if needed and returns a manager
// backed by it. Instantiable in isolation for tests.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	return &Manager{
		dir:      dir,
		sessions: make(map[string]*Session),
	}, nil
}

// Dir returns the directory backing /uploads.
func (m *Manager) Dir() string {
	return m.dir
}

// Start validates the declared size, opens an exclusive write stream to a
// freshly named file, and registers a session owned by the connection.
func (m *Manager) Start(ownerID, roomCode, originalName, mimeType string, size int64) (string, error) {
	if size <= 0 || size > MaxFileSize {
		return "", ErrInvalidSize
	}

	filename := storageFilename(originalName)
	path := filepath.Join(m.dir, filename)

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		logging.Error(context.Background(), "failed to open upload file",
			zap.String("path", path), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	s := &Session{
		ID:           uuid.New().String(),
		OwnerID:      ownerID,
		RoomCode:     roomCode,
		OriginalName: originalName,
		MimeType:     mimeType,
		DeclaredSize: size,
		filename:     filename,
		path:         path,
		file:         file,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	metrics.ActiveUploadSessions.Inc()
	return s.ID, nil
}

// Chunk appends bytes to the session's write stream. An upload belongs to its
// originating connection; anyone else gets ErrUnknownUpload. Exceeding the
// declared size or the global cap aborts the session and deletes the partial
// file.
func (m *Manager) Chunk(ownerID, uploadID string, chunk []byte) (int64, error) {
	s, err := m.ownedSession(ownerID, uploadID)
	if err != nil {
		return 0, err
	}
	if len(chunk) == 0 {
		return 0, ErrEmptyChunk
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}

	if s.received+int64(len(chunk)) > s.DeclaredSize || s.received+int64(len(chunk)) > MaxFileSize {
		s.abortLocked()
		s.mu.Unlock()
		m.remove(s.ID)
		metrics.UploadsCompleted.WithLabelValues("exceeded").Inc()
		return 0, ErrFileExceeded
	}

	if _, err := s.file.Write(chunk); err != nil {
		s.abortLocked()
		s.mu.Unlock()
		m.remove(s.ID)
		metrics.UploadsCompleted.WithLabelValues("write_error").Inc()
		logging.Error(context.Background(), "upload write failed",
			zap.String("uploadId", s.ID), zap.Error(err))
		return 0, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	s.received += int64(len(chunk))
	received := s.received
	s.mu.Unlock()

	metrics.UploadBytesReceived.Add(float64(len(chunk)))
	return received, nil
}

// Complete flushes and closes the write stream, then returns the FileMeta.
// Bytes received are not checked against the declared size; a short upload
// the client finalizes is accepted at its actual length.
func (m *Manager) Complete(ownerID, uploadID string) (*events.FileMeta, error) {
	s, err := m.ownedSession(ownerID, uploadID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.closed = true

	if err := s.file.Close(); err != nil {
		_ = os.Remove(s.path)
		s.mu.Unlock()
		m.remove(s.ID)
		metrics.UploadsCompleted.WithLabelValues("write_error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	meta := &events.FileMeta{
		ID:           uuid.New().String(),
		URL:          "/uploads/" + s.filename,
		OriginalName: s.OriginalName,
		MimeType:     s.MimeType,
		Size:         s.received,
		UploadedAt:   time.Now().UnixMilli(),
	}
	s.mu.Unlock()

	m.remove(s.ID)
	metrics.UploadsCompleted.WithLabelValues("completed").Inc()
	return meta, nil
}

// AbortAllForConnection destroys every session owned by the departing
// connection and deletes its partial files. Called on socket teardown.
func (m *Manager) AbortAllForConnection(ownerID string) {
	m.mu.Lock()
	var owned []*Session
	for id, s := range m.sessions {
		if s.OwnerID == ownerID {
			owned = append(owned, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range owned {
		s.mu.Lock()
		s.abortLocked()
		s.mu.Unlock()
		metrics.ActiveUploadSessions.Dec()
		metrics.UploadsCompleted.WithLabelValues("aborted").Inc()
		logging.Info(context.Background(), "aborted upload on disconnect",
			zap.String("uploadId", s.ID), zap.String("connId", ownerID))
	}
}

// ActiveCount returns the number of open sessions.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ownedSession resolves an upload id and enforces ownership.
func (m *Manager) ownedSession(ownerID, uploadID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[uploadID]
	if !ok || s.OwnerID != ownerID {
		return nil, ErrUnknownUpload
	}
	return s, nil
}

// remove drops a session from the table.
func (m *Manager) remove(uploadID string) {
	m.mu.Lock()
	if _, ok := m.sessions[uploadID]; ok {
		delete(m.sessions, uploadID)
		metrics.ActiveUploadSessions.Dec()
	}
	m.mu.Unlock()
}

// abortLocked closes the stream and removes the partial file. Caller holds
// the session lock.
func (s *Session) abortLocked() {
	if !s.closed {
		s.closed = true
		_ = s.file.Close()
	}
	_ = os.Remove(s.path)
}
