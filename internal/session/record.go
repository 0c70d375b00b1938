package session

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SchemaVersion is the current journal file schema version.
const SchemaVersion = 1

// Recorder receives every journal entry as it is added.
type Recorder interface {
	Record(e Entry) error
}

// ErrRecorderClosed is returned when recording to a closed journal file.
var ErrRecorderClosed = errors.New("journal file is closed")

// schemaHeader is the first line of the JSONL file.
type schemaHeader struct {
	PopuiSchemaVersion int   `json:"popui_schema_version"`
	CreatedAt          int64 `json:"created_at"`
}

// JournalFile appends journal entries to a JSONL file, one entry per line
// after a schema header.
type JournalFile struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	closed bool
}

// OpenJournalFile opens path for appending, creating it and its directory
// if needed.
func OpenJournalFile(path string) (*JournalFile, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}

	f := &JournalFile{path: path, file: file}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.Size() == 0 {
		if err := f.writeLine(schemaHeader{PopuiSchemaVersion: SchemaVersion, CreatedAt: time.Now().Unix()}); err != nil {
			file.Close()
			return nil, err
		}
	}

	return f, nil
}

// Path returns the file path.
func (f *JournalFile) Path() string { return f.path }

// Record implements Recorder.
func (f *JournalFile) Record(e Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrRecorderClosed
	}
	if err := f.writeLine(e); err != nil {
		return err
	}
	return f.file.Sync()
}

func (f *JournalFile) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = f.file.Write(append(data, '\n'))
	return err
}

// Close releases the file handle.
func (f *JournalFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	return f.file.Close()
}

// ReadJournalFile reads every recorded entry from path, oldest first.
// Malformed lines are skipped.
func ReadJournalFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)

	// Scripts and details can make long lines
	const maxLineSize = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		if lineNum == 1 {
			var header schemaHeader
			if err := json.Unmarshal(line, &header); err == nil && header.PopuiSchemaVersion > 0 {
				if header.PopuiSchemaVersion > SchemaVersion {
					return nil, fmt.Errorf("unsupported schema version %d (max: %d)",
						header.PopuiSchemaVersion, SchemaVersion)
				}
				continue
			}
		}

		var e Entry
		if err := json.Unmarshal(line, &e); err != nil || e.ID == "" {
			continue
		}
		entries = append(entries, e)
	}

	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("error reading file: %w", err)
	}
	return entries, nil
}
