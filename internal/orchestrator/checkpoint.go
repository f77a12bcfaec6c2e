package orchestrator

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Checkpoint tracks which paths have already completed the pipeline during
// a long-running Scan, so a killed process can resume without re-hashing
// files it already indexed (SPEC_FULL.md "Resume/interrupt bookkeeping").
// This is orthogonal to undo, which reverses merges rather than scans.
// Grounded on the teacher's ResumeState (resume.go): a line-oriented state
// file with a metadata header followed by one processed path per line.
type Checkpoint struct {
	mu       sync.Mutex
	path     string
	started  time.Time
	root     string
	done     map[string]bool
	appendFh *os.File
}

// NewCheckpoint creates a fresh checkpoint file under stateDir for root.
func NewCheckpoint(stateDir, root string) (*Checkpoint, error) {
	name := fmt.Sprintf("mediadupe_scan_%s.state", time.Now().Format("20060102_150405"))
	path := filepath.Join(stateDir, name)

	fh, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: creating checkpoint file: %w", err)
	}

	started := time.Now()
	if _, err := fmt.Fprintf(fh, "START_TIME:%s ROOT:%s\n", started.Format(time.RFC3339), root); err != nil {
		fh.Close()
		return nil, fmt.Errorf("orchestrator: writing checkpoint header: %w", err)
	}

	return &Checkpoint{path: path, started: started, root: root, done: make(map[string]bool), appendFh: fh}, nil
}

// LoadCheckpoint resumes from an existing checkpoint file.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: opening checkpoint file: %w", err)
	}
	defer fh.Close()

	cp := &Checkpoint{path: path, done: make(map[string]bool)}

	scanner := bufio.NewScanner(fh)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if lineNum == 1 {
			var startTimeStr string
			if _, err := fmt.Sscanf(line, "START_TIME:%s ROOT:%s", &startTimeStr, &cp.root); err != nil {
				return nil, fmt.Errorf("orchestrator: invalid checkpoint header on line %d", lineNum)
			}
			cp.started, _ = time.Parse(time.RFC3339, startTimeStr)
			continue
		}
		if line != "" {
			cp.done[line] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("orchestrator: reading checkpoint file: %w", err)
	}

	appendFh, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: reopening checkpoint for append: %w", err)
	}
	cp.appendFh = appendFh

	return cp, nil
}

// MarkDone records path as completed and appends it to the checkpoint file.
func (c *Checkpoint) MarkDone(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done[path] {
		return nil
	}
	c.done[path] = true
	_, err := fmt.Fprintln(c.appendFh, path)
	return err
}

// IsDone reports whether path was already completed in a prior run.
func (c *Checkpoint) IsDone(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done[path]
}

// Close releases the checkpoint's file handle without removing it.
func (c *Checkpoint) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.appendFh == nil {
		return nil
	}
	return c.appendFh.Close()
}

// Cleanup removes the checkpoint file; call on successful completion of a
// full, uninterrupted scan.
func (c *Checkpoint) Cleanup() error {
	_ = c.Close()
	return os.Remove(c.path)
}
