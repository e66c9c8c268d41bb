package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DirSink writes recordings to a directory as <recordingID>.wav.
type DirSink struct {
	dir string
}

func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating recording directory: %w", err)
	}
	return &DirSink{dir: dir}, nil
}

func (s *DirSink) Save(_ context.Context, recordingID string, media io.Reader) error {
	// Write to a temp file first so a partial download never leaves a
	// truncated recording at the final path
	tmp, err := os.CreateTemp(s.dir, recordingID+".*.partial")
	if err != nil {
		return fmt.Errorf("creating recording file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, media); err != nil {
		tmp.Close()
		return fmt.Errorf("writing recording %s: %w", recordingID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing recording %s: %w", recordingID, err)
	}
	return os.Rename(tmp.Name(), filepath.Join(s.dir, recordingID+".wav"))
}

var _ RecordingSink = (*DirSink)(nil)
