// Package history persists conversation snapshots so a session can be
// saved, listed, and resumed later. Each snapshot is one JSON file;
// saving over an existing name rotates backups instead of clobbering.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ruzivolabs/ruzivo/internal/config"
	"github.com/ruzivolabs/ruzivo/internal/fault"
	"github.com/ruzivolabs/ruzivo/internal/types"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

// Snapshot names: letters, digits, dash, underscore. Keeps the files
// shell-friendly and blocks path tricks.
var nameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,63}$`)

// Snapshot is one saved conversation.
type Snapshot struct {
	Name      string          `json:"name"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Messages  []types.Message `json:"messages"`
}

// Turns counts the user messages in the snapshot.
func (s *Snapshot) Turns() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == types.RoleUser {
			n++
		}
	}
	return n
}

// Store keeps snapshots as JSON files in a single directory.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// DefaultName builds a timestamped snapshot name for saves that did not
// supply one.
func DefaultName(now time.Time) string {
	return "session-" + now.Format("20060102-150405")
}

// Save writes the messages under name. Saving over an existing snapshot
// keeps its creation time and rotates file backups.
func (st *Store) Save(name string, msgs []types.Message) (*Snapshot, error) {
	if !nameRe.MatchString(name) {
		return nil, fault.InvalidArgument("invalid session name %q", name).
			WithHint("use letters, digits, dashes, and underscores")
	}
	now := time.Now().UTC()
	snap := &Snapshot{
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  msgs,
	}
	if prev, err := st.Load(name); err == nil {
		snap.CreatedAt = prev.CreatedAt
	}
	if err := config.BackupAndWriteJSON(st.path(name), snap, 0); err != nil {
		return nil, fmt.Errorf("save session %s: %w", name, err)
	}
	L_info("history: session saved", "name", name, "messages", len(msgs))
	return snap, nil
}

// Load reads one snapshot by name.
func (st *Store) Load(name string) (*Snapshot, error) {
	if !nameRe.MatchString(name) {
		return nil, fault.InvalidArgument("invalid session name %q", name).
			WithHint("use letters, digits, dashes, and underscores")
	}
	data, err := os.ReadFile(st.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fault.InvalidArgument("no saved session named %q", name).
				WithHint("/history lists saved sessions")
		}
		return nil, fmt.Errorf("read session %s: %w", name, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", name, err)
	}
	return &snap, nil
}

// List returns all snapshots, most recently updated first. Unreadable
// files are skipped so one corrupt snapshot never hides the rest.
func (st *Store) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(st.dir)
	if err != nil {
		return nil, fmt.Errorf("list history directory: %w", err)
	}
	var snaps []Snapshot
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		snap, err := st.Load(name)
		if err != nil {
			L_warn("history: skipping unreadable snapshot", "file", e.Name(), "error", err)
			continue
		}
		snaps = append(snaps, *snap)
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].UpdatedAt.After(snaps[j].UpdatedAt)
	})
	return snaps, nil
}

func (st *Store) path(name string) string {
	return filepath.Join(st.dir, name+".json")
}
