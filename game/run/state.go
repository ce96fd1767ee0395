package run

import (
	"go.uber.org/zap"
)

// Phase is the coarse state of a dungeon run.
type Phase string

const (
	PhaseMenu     Phase = "menu"
	PhasePlaying  Phase = "playing"
	PhasePaused   Phase = "paused"
	PhaseGameOver Phase = "gameOver"
	PhaseVictory  Phase = "victory"
)

const (
	StartHealth  = 100
	WrongPenalty = 20
	FinalRoom    = 10
	ChestsToOpen = 3
)

// ChestRef identifies one chest by room and slot.
type ChestRef struct {
	Room  int `json:"room"`
	Chest int `json:"chest"`
}

// Listener observes state changes. Called synchronously after every
// mutation, before any persistence happens.
type Listener func(*State)

// State is the mutable run state: room, health, score and opened
// chests. It is owned by a single goroutine (the session controller)
// and carries no locking. Persistence lives in the controller; State
// only mutates and notifies.
type State struct {
	CurrentRoom    int
	Health         int
	Score          int
	TotalCorrect   int
	TotalIncorrect int
	OpenedChests   []ChestRef
	GameCompleted  bool

	phase     Phase
	listeners []Listener
	logger    *zap.Logger
}

func NewState(logger *zap.Logger) *State {
	s := &State{logger: logger}
	s.Reset()
	return s
}

// Reset returns the run to its new-game values. Registered listeners
// survive a reset.
func (s *State) Reset() {
	s.CurrentRoom = 1
	s.Health = StartHealth
	s.Score = 0
	s.TotalCorrect = 0
	s.TotalIncorrect = 0
	s.OpenedChests = nil
	s.GameCompleted = false
	s.phase = PhaseMenu
}

// Subscribe registers a listener for state changes.
func (s *State) Subscribe(l Listener) {
	s.listeners = append(s.listeners, l)
}

func (s *State) notify() {
	for _, l := range s.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("state listener panicked", zap.Any("recover", r))
				}
			}()
			l(s)
		}()
	}
}

// Phase returns the current run phase.
func (s *State) Phase() Phase { return s.phase }

// SetPhase transitions the run phase and notifies.
func (s *State) SetPhase(p Phase) {
	if s.phase == p {
		return
	}
	s.phase = p
	s.notify()
}

// IsChestOpened reports whether the chest was opened in this run.
func (s *State) IsChestOpened(room, chest int) bool {
	for _, c := range s.OpenedChests {
		if c.Room == room && c.Chest == chest {
			return true
		}
	}
	return false
}

// OpenChest records a chest as opened. Idempotent; notifies only on
// first open.
func (s *State) OpenChest(room, chest int) {
	if s.IsChestOpened(room, chest) {
		return
	}
	s.OpenedChests = append(s.OpenedChests, ChestRef{Room: room, Chest: chest})
	s.notify()
}

// OpenedInRoom counts opened chests in the given room.
func (s *State) OpenedInRoom(room int) int {
	n := 0
	for _, c := range s.OpenedChests {
		if c.Room == room {
			n++
		}
	}
	return n
}

// IsRoomComplete reports whether all chests in the room are open.
func (s *State) IsRoomComplete(room int) bool {
	return s.OpenedInRoom(room) >= ChestsToOpen
}

// AnswerCorrect records a correct answer worth the given points.
func (s *State) AnswerCorrect(points int) {
	s.TotalCorrect++
	s.Score += points
	s.notify()
}

// AnswerIncorrect records a wrong answer and applies the health
// penalty, clamped at zero. Reaching zero ends the run. Returns true
// when the run is over.
func (s *State) AnswerIncorrect() bool {
	s.TotalIncorrect++
	s.Health -= WrongPenalty
	if s.Health < 0 {
		s.Health = 0
	}
	if s.Health == 0 {
		s.phase = PhaseGameOver
		s.notify()
		return true
	}
	s.notify()
	return false
}

// NextRoom advances to the next room, or ends the run in victory from
// the final room. Returns true on victory.
func (s *State) NextRoom() bool {
	if s.CurrentRoom < FinalRoom {
		s.CurrentRoom++
		s.notify()
		return false
	}
	s.GameCompleted = true
	s.phase = PhaseVictory
	s.notify()
	return true
}

// DarknessOpacity maps health to the darkness overlay alpha: full
// health is bright, zero health is 0.6.
func (s *State) DarknessOpacity() float64 {
	return float64(100-s.Health) / 100 * 0.6
}

// HealthColor returns the health bar color for the current health.
func (s *State) HealthColor() string {
	switch {
	case s.Health > 60:
		return "#22c55e"
	case s.Health > 30:
		return "#f59e0b"
	default:
		return "#ef4444"
	}
}
