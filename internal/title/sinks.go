package title

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// TerminalTitleSink writes the title via the OSC escape sequence.
type TerminalTitleSink struct {
	Out io.Writer

	mu   sync.Mutex
	last string
}

func NewTerminalTitleSink(out io.Writer, initial string) *TerminalTitleSink {
	return &TerminalTitleSink{Out: out, last: initial}
}

func (s *TerminalTitleSink) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *TerminalTitleSink) Set(title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.Out, "\x1b]0;%s\x07", title); err != nil {
		return err
	}
	s.last = title
	return nil
}

// FileIconSink swaps an icon file in place with an atomic rename so
// readers never observe the file missing or half-written.
type FileIconSink struct {
	Path string

	mu sync.Mutex
}

func NewFileIconSink(path string) *FileIconSink {
	return &FileIconSink{Path: path}
}

// Current reads the icon as it exists before the first swap.
func (s *FileIconSink) Current() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil
	}
	return data
}

func (s *FileIconSink) Set(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(data) == 0 {
		return errors.New("title: empty icon payload")
	}
	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, "icon-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.Path)
}
