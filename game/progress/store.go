package progress

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"dsdungeon/apiclient"
	"dsdungeon/game/run"
	"go.uber.org/zap"
)

// Snapshot is one durable save: everything needed to resume a run,
// plus the lifetime answered set for offline dedup.
type Snapshot struct {
	CurrentRoom    int            `json:"current_room"`
	Health         int            `json:"brightness_level"`
	Score          int            `json:"score"`
	TotalCorrect   int            `json:"total_correct"`
	TotalIncorrect int            `json:"total_incorrect"`
	GameCompleted  bool           `json:"game_completed"`
	OpenedChests   []run.ChestRef `json:"chest_states"`
	AnsweredIDs    []int          `json:"answered_ids,omitempty"`
}

// FromState captures a snapshot of the given run state.
func FromState(st *run.State, answeredIDs []int) *Snapshot {
	return &Snapshot{
		CurrentRoom:    st.CurrentRoom,
		Health:         st.Health,
		Score:          st.Score,
		TotalCorrect:   st.TotalCorrect,
		TotalIncorrect: st.TotalIncorrect,
		GameCompleted:  st.GameCompleted,
		OpenedChests:   append([]run.ChestRef(nil), st.OpenedChests...),
		AnsweredIDs:    answeredIDs,
	}
}

// Apply writes the snapshot into a run state.
func (s *Snapshot) Apply(st *run.State) {
	st.CurrentRoom = s.CurrentRoom
	st.Health = s.Health
	st.Score = s.Score
	st.TotalCorrect = s.TotalCorrect
	st.TotalIncorrect = s.TotalIncorrect
	st.GameCompleted = s.GameCompleted
	st.OpenedChests = append([]run.ChestRef(nil), s.OpenedChests...)
}

// Remote is the backend slice of progress persistence.
type Remote interface {
	GetProgress(ctx context.Context) (*apiclient.Progress, error)
	UpdateProgress(ctx context.Context, upd apiclient.ProgressUpdate) (*apiclient.Progress, error)
	DeleteProgress(ctx context.Context) error
}

// Store persists snapshots remote-first with a local JSON file as the
// offline tier. None of its methods return errors: persistence
// degradation never interrupts play, it only gets logged.
type Store struct {
	remote Remote // nil when offline or unauthenticated
	path   string
	logger *zap.Logger
}

func NewStore(remote Remote, path string, logger *zap.Logger) *Store {
	return &Store{remote: remote, path: path, logger: logger}
}

// Save writes the snapshot to every available tier. Returns true when
// at least one tier accepted it.
func (s *Store) Save(ctx context.Context, snap *Snapshot) bool {
	ok := false
	if s.remote != nil {
		if _, err := s.remote.UpdateProgress(ctx, snap.toUpdate()); err != nil {
			s.logger.Warn("remote save failed", zap.Error(err))
		} else {
			ok = true
		}
	}
	if s.saveLocal(snap) {
		ok = true
	}
	return ok
}

func (s *Snapshot) toUpdate() apiclient.ProgressUpdate {
	chests := s.OpenedChests
	if chests == nil {
		chests = []run.ChestRef{}
	}
	return apiclient.ProgressUpdate{
		CurrentRoom:     s.CurrentRoom,
		BrightnessLevel: s.Health,
		TotalCorrect:    s.TotalCorrect,
		TotalIncorrect:  s.TotalIncorrect,
		Score:           s.Score,
		GameCompleted:   s.GameCompleted,
		ChestStates:     chests,
	}
}

func (s *Store) saveLocal(snap *Snapshot) bool {
	if s.path == "" {
		return false
	}
	buf, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		s.logger.Warn("local save encode failed", zap.Error(err))
		return false
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.logger.Warn("local save mkdir failed", zap.Error(err))
		return false
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		s.logger.Warn("local save write failed", zap.Error(err))
		return false
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.logger.Warn("local save rename failed", zap.Error(err))
		return false
	}
	return true
}

// Load returns the newest available snapshot. Remote wins; a remote
// save sitting at room 1 counts as no save (the server hands out a
// fresh row on first GET). Malformed local files read as absent.
func (s *Store) Load(ctx context.Context) (*Snapshot, bool) {
	if s.remote != nil {
		if p, err := s.remote.GetProgress(ctx); err != nil {
			s.logger.Warn("remote load failed", zap.Error(err))
		} else if snap := fromProgress(p); snap.CurrentRoom > 1 {
			return snap, true
		}
	}
	return s.loadLocal()
}

func fromProgress(p *apiclient.Progress) *Snapshot {
	snap := &Snapshot{
		CurrentRoom:    p.CurrentRoom,
		Health:         p.BrightnessLevel,
		Score:          p.Score,
		TotalCorrect:   p.TotalCorrect,
		TotalIncorrect: p.TotalIncorrect,
		GameCompleted:  p.GameCompleted,
	}
	if p.ChestStates != "" {
		var chests []run.ChestRef
		if err := json.Unmarshal([]byte(p.ChestStates), &chests); err == nil {
			snap.OpenedChests = chests
		}
	}
	return snap
}

func (s *Store) loadLocal() (*Snapshot, bool) {
	if s.path == "" {
		return nil, false
	}
	buf, err := os.ReadFile(s.path)
	if err != nil {
		return nil, false
	}
	var snap Snapshot
	if err := json.Unmarshal(buf, &snap); err != nil {
		s.logger.Warn("local save malformed, ignoring", zap.String("path", s.path), zap.Error(err))
		return nil, false
	}
	if snap.CurrentRoom <= 1 {
		return nil, false
	}
	return &snap, true
}

// HasSave reports whether a resumable snapshot exists on any tier.
func (s *Store) HasSave(ctx context.Context) bool {
	_, ok := s.Load(ctx)
	return ok
}

// Clear removes the save from every tier.
func (s *Store) Clear(ctx context.Context) {
	if s.remote != nil {
		if err := s.remote.DeleteProgress(ctx); err != nil {
			s.logger.Warn("remote clear failed", zap.Error(err))
		}
	}
	if s.path != "" {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("local clear failed", zap.Error(err))
		}
	}
}
