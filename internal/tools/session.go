package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/ruzivolabs/ruzivo/internal/fault"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

// maxFileBytes caps file reads and writes.
const maxFileBytes = 10 << 20

// Unicode spaces normalized to a regular space before path resolution;
// models paste these from rendered text.
var unicodeSpaces = regexp.MustCompile(`[\x{00A0}\x{2000}-\x{200A}\x{202F}\x{205F}\x{3000}]`)

// Session is the per-session file state shared by the file tools and the
// dispatcher: the jail root (user home), the current working directory
// that relative paths resolve against, and the set of absolute paths
// read so far (edit_file requires a prior read).
type Session struct {
	mu   sync.Mutex
	root string
	cwd  string
	read map[string]bool
}

// NewSession creates a session jailed to root. An empty root means the
// user's home directory, which is also the starting working directory.
func NewSession(root string) (*Session, error) {
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		root = home
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve session root: %w", err)
	}
	return &Session{
		root: filepath.Clean(root),
		cwd:  filepath.Clean(root),
		read: make(map[string]bool),
	}, nil
}

// Cwd returns the current working directory.
func (s *Session) Cwd() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cwd
}

// Resolve expands and normalizes path, resolves it against the working
// directory, and refuses anything outside the session root.
func (s *Session) Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fault.InvalidArgument("path is required")
	}
	expanded := s.expand(path)

	s.mu.Lock()
	cwd := s.cwd
	s.mu.Unlock()

	resolved := expanded
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(cwd, resolved)
	}
	resolved = filepath.Clean(resolved)

	rel, err := filepath.Rel(s.root, resolved)
	if err != nil || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		L_warn("session: path escapes home", "path", path, "resolved", resolved)
		return "", fault.InvalidArgument("path is outside your home directory: %s", path).
			WithHint("file tools only operate under " + s.root)
	}
	return resolved, nil
}

func (s *Session) expand(path string) string {
	normalized := unicodeSpaces.ReplaceAllString(strings.TrimSpace(path), " ")
	if normalized == "~" {
		return s.root
	}
	if strings.HasPrefix(normalized, "~/") {
		return filepath.Join(s.root, normalized[2:])
	}
	return normalized
}

// Chdir resolves target and makes it the working directory. An empty
// target goes back to the session root.
func (s *Session) Chdir(target string) (string, error) {
	if strings.TrimSpace(target) == "" {
		s.mu.Lock()
		s.cwd = s.root
		s.mu.Unlock()
		return s.root, nil
	}
	resolved, err := s.Resolve(target)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fault.InvalidArgument("cannot cd to %s: %v", target, err)
	}
	if !info.IsDir() {
		return "", fault.InvalidArgument("not a directory: %s", target)
	}
	s.mu.Lock()
	s.cwd = resolved
	s.mu.Unlock()
	L_debug("session: working directory changed", "cwd", resolved)
	return resolved, nil
}

// MarkRead records a successful read of the absolute path.
func (s *Session) MarkRead(abs string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.read[abs] = true
}

// WasRead reports whether the absolute path was read this session.
func (s *Session) WasRead(abs string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read[abs]
}

// ReadFile resolves path and returns its contents, enforcing the size
// cap before reading.
func (s *Session) ReadFile(path string) ([]byte, string, error) {
	resolved, err := s.Resolve(path)
	if err != nil {
		return nil, "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", path, err)
	}
	if info.Size() > maxFileBytes {
		return nil, "", fault.InvalidArgument("file too large: %s is %d bytes (limit %d)", path, info.Size(), maxFileBytes)
	}
	content, err := os.ReadFile(resolved)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", path, err)
	}
	return content, resolved, nil
}

// WriteFile resolves path and writes data atomically: temp file in the
// target directory, sync, then rename. Existing permissions survive.
func (s *Session) WriteFile(path string, data []byte) (string, error) {
	if len(data) > maxFileBytes {
		return "", fault.InvalidArgument("content too large: %d bytes (limit %d)", len(data), maxFileBytes)
	}
	resolved, err := s.Resolve(path)
	if err != nil {
		return "", err
	}

	perm := os.FileMode(0644)
	if info, err := os.Stat(resolved); err == nil {
		perm = info.Mode().Perm()
	}
	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create directory for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".ruzivo-*.tmp")
	if err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return "", fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, resolved); err != nil {
		return "", fmt.Errorf("rename into %s: %w", path, err)
	}
	ok = true
	return resolved, nil
}
