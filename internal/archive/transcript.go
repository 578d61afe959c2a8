// internal/archive/transcript.go
package archive

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/chronicler/internal/types"
)

// Store is a JSONL-backed append-only transcript archive. Turns are stored
// per scene in transcripts/<sceneID>.jsonl under the campaign directory.
// Compression operates on the active context view only; this archive is the
// lossless record a SceneRecord's transcript_ref points at.
type Store struct {
	root  string
	mu    sync.Mutex
	locks map[types.SceneID]*sync.Mutex
}

// NewStore creates a transcript store rooted at the given directory.
func NewStore(root string) *Store {
	return &Store{
		root:  root,
		locks: make(map[types.SceneID]*sync.Mutex),
	}
}

// getLock returns the per-scene mutex, creating one if it doesn't exist.
func (s *Store) getLock(sceneID types.SceneID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lock, ok := s.locks[sceneID]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	s.locks[sceneID] = lock
	return lock
}

func (s *Store) path(sceneID types.SceneID) string {
	return filepath.Join(s.root, "transcripts", string(sceneID)+".jsonl")
}

// Ref returns the reference string recorded in a SceneRecord, relative to
// the campaign directory.
func (s *Store) Ref(sceneID types.SceneID) string {
	return filepath.Join("transcripts", string(sceneID)+".jsonl")
}

// Append adds a turn to its scene's transcript file.
func (s *Store) Append(_ context.Context, turn *types.Turn) error {
	if turn.SceneID == "" {
		return fmt.Errorf("turn has no scene id")
	}
	lock := s.getLock(turn.SceneID)
	lock.Lock()
	defer lock.Unlock()

	dir := filepath.Dir(s.path(turn.SceneID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create transcripts dir: %w", err)
	}

	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}

	f, err := os.OpenFile(s.path(turn.SceneID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript file: %w", err)
	}
	defer f.Close()

	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write turn: %w", err)
	}

	return nil
}

// Read returns the full ordered transcript for the given scene.
func (s *Store) Read(_ context.Context, sceneID types.SceneID) ([]*types.Turn, error) {
	lock := s.getLock(sceneID)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.Open(s.path(sceneID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open transcript file: %w", err)
	}
	defer f.Close()

	var turns []*types.Turn
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var turn types.Turn
		if err := json.Unmarshal(scanner.Bytes(), &turn); err != nil {
			return nil, fmt.Errorf("unmarshal turn: %w", err)
		}
		turns = append(turns, &turn)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan transcript file: %w", err)
	}

	return turns, nil
}

// Count returns the number of archived turns for the given scene.
func (s *Store) Count(_ context.Context, sceneID types.SceneID) (int64, error) {
	lock := s.getLock(sceneID)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.Open(s.path(sceneID))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open transcript file: %w", err)
	}
	defer f.Close()

	var count int64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan transcript file: %w", err)
	}
	return count, nil
}
