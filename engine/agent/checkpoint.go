package agent

import (
	"container/list"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"
	"time"

	"siteforge/engine/models"
)

// CheckpointConfig mirrors the teacher's resource manager Config, repurposed
// from an LRU of crawled pages to an LRU of AgentRun checkpoints: when more
// runs are in flight than CacheCapacity, the coldest run's checkpoint spills
// to disk under SpillDirectory and is reloaded transparently on the next
// Load.
type CheckpointConfig struct {
	CacheCapacity  int
	SpillDirectory string
}

// CheckpointStore persists and retrieves one AgentRun's checkpoint, keyed
// by runID (spec.md §4.7 "Checkpointing").
type CheckpointStore struct {
	cfg   CheckpointConfig
	mu    sync.Mutex
	lru   *list.List
	cache map[string]*list.Element
	spill map[string]string
}

type checkpointEntry struct {
	runID string
	cp    *models.AgentCheckpoint
}

// NewCheckpointStore builds a store; SpillDirectory is created eagerly if
// set, matching the teacher's fail-fast-on-construction behavior.
func NewCheckpointStore(cfg CheckpointConfig) (*CheckpointStore, error) {
	s := &CheckpointStore{cfg: cfg, lru: list.New(), cache: make(map[string]*list.Element), spill: make(map[string]string)}
	if cfg.SpillDirectory != "" {
		if err := os.MkdirAll(cfg.SpillDirectory, 0o755); err != nil {
			return nil, fmt.Errorf("create checkpoint spill directory: %w", err)
		}
	}
	return s, nil
}

// Save persists a deep-enough copy of cp for runID, evicting the coldest
// entry to disk if the store is over capacity.
func (s *CheckpointStore) Save(runID string, cp *models.AgentCheckpoint) error {
	if runID == "" || cp == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := copyCheckpoint(cp)
	if el, ok := s.cache[runID]; ok {
		el.Value.(*checkpointEntry).cp = copied
		s.lru.MoveToFront(el)
		return nil
	}
	el := s.lru.PushFront(&checkpointEntry{runID: runID, cp: copied})
	s.cache[runID] = el
	delete(s.spill, runID)

	if s.cfg.CacheCapacity > 0 {
		for len(s.cache) > s.cfg.CacheCapacity {
			if err := s.evictOldestLocked(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Load returns the checkpoint for runID, transparently reloading it from
// disk if it had been spilled.
func (s *CheckpointStore) Load(runID string) (*models.AgentCheckpoint, bool, error) {
	if runID == "" {
		return nil, false, nil
	}
	s.mu.Lock()
	if el, ok := s.cache[runID]; ok {
		s.lru.MoveToFront(el)
		cp := copyCheckpoint(el.Value.(*checkpointEntry).cp)
		s.mu.Unlock()
		return cp, true, nil
	}
	path, spilled := s.spill[runID]
	s.mu.Unlock()
	if !spilled {
		return nil, false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("read checkpoint spill file: %w", err)
	}
	var cp models.AgentCheckpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, false, fmt.Errorf("decode checkpoint spill file: %w", err)
	}
	if err := s.Save(runID, &cp); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	delete(s.spill, runID)
	s.mu.Unlock()
	return &cp, true, nil
}

// Drop removes a run's checkpoint entirely (terminal success, spec.md §5
// "Resource cleanup").
func (s *CheckpointStore) Drop(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.cache[runID]; ok {
		s.lru.Remove(el)
		delete(s.cache, runID)
	}
	if path, ok := s.spill[runID]; ok {
		_ = os.Remove(path)
		delete(s.spill, runID)
	}
}

func (s *CheckpointStore) evictOldestLocked() error {
	back := s.lru.Back()
	if back == nil {
		return nil
	}
	entry := back.Value.(*checkpointEntry)
	delete(s.cache, entry.runID)
	s.lru.Remove(back)
	if s.cfg.SpillDirectory == "" {
		return nil
	}
	filename := fmt.Sprintf("run-%s-%d.checkpoint.json", hashKey(entry.runID), time.Now().UnixNano())
	path := filepath.Join(s.cfg.SpillDirectory, filename)
	data, err := json.Marshal(entry.cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint spill file: %w", err)
	}
	s.spill[entry.runID] = path
	return nil
}

func copyCheckpoint(cp *models.AgentCheckpoint) *models.AgentCheckpoint {
	if cp == nil {
		return nil
	}
	data, err := json.Marshal(cp)
	if err != nil {
		c := *cp
		return &c
	}
	var out models.AgentCheckpoint
	if err := json.Unmarshal(data, &out); err != nil {
		c := *cp
		return &c
	}
	return &out
}

func hashKey(k string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(k))
	return fmt.Sprintf("%x", h.Sum64())
}
