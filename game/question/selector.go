package question

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RemoteSource serves questions from the backend. The selector prefers
// it when present and falls back to the embedded bank on any error.
type RemoteSource interface {
	QuestionByRoomChest(ctx context.Context, room, chest int) (*Question, error)
}

// DifficultyFor maps a room/chest pair to a difficulty bucket. Chest 1
// is the easiest in every room band.
func DifficultyFor(room, chest int) string {
	var band [3]string
	switch {
	case room <= 3:
		band = [3]string{DifficultyEasy, DifficultyMedium, DifficultyHard}
	case room <= 6:
		band = [3]string{DifficultyMedium, DifficultyHard, DifficultyVeryHard}
	default:
		band = [3]string{DifficultyHard, DifficultyVeryHard, DifficultyExpert}
	}
	if chest < 1 || chest > 3 {
		chest = 1
	}
	return band[chest-1]
}

// Selector picks an unanswered question for a room/chest pair. The
// answered set covers the whole player lifetime, not a single run.
type Selector struct {
	mu       sync.Mutex
	bank     *Bank
	answered map[int]struct{}
	rng      *rand.Rand
	remote   RemoteSource
	logger   *zap.Logger
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithRemote makes the selector ask the backend first.
func WithRemote(r RemoteSource) SelectorOption {
	return func(s *Selector) { s.remote = r }
}

// WithRand injects a deterministic random source.
func WithRand(rng *rand.Rand) SelectorOption {
	return func(s *Selector) { s.rng = rng }
}

func NewSelector(bank *Bank, logger *zap.Logger, opts ...SelectorOption) *Selector {
	s := &Selector{
		bank:     bank,
		answered: make(map[int]struct{}),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select returns an unanswered question for the room/chest pair, or nil
// when the whole catalog is exhausted. A nil result means the chest
// opens without a challenge.
func (s *Selector) Select(ctx context.Context, room, chest int) *Question {
	if s.remote != nil {
		q, err := s.remote.QuestionByRoomChest(ctx, room, chest)
		if err == nil && q != nil {
			return q
		}
		if err != nil {
			s.logger.Warn("remote question fetch failed, using local catalog",
				zap.Int("room", room), zap.Int("chest", chest), zap.Error(err))
		}
	}
	return s.selectLocal(room, chest)
}

func (s *Selector) selectLocal(room, chest int) *Question {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := DifficultyFor(room, chest)
	if q := s.pick(s.bank.ByDifficulty(want)); q != nil {
		return q
	}
	// Bucket exhausted; fall back to anything unanswered.
	all := make([]*Question, 0, s.bank.Len())
	for _, d := range []string{DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyVeryHard, DifficultyExpert} {
		all = append(all, s.bank.ByDifficulty(d)...)
	}
	return s.pick(all)
}

// pick returns a uniformly random unanswered question from candidates.
func (s *Selector) pick(candidates []*Question) *Question {
	open := make([]*Question, 0, len(candidates))
	for _, q := range candidates {
		if _, done := s.answered[q.ID]; !done {
			open = append(open, q)
		}
	}
	if len(open) == 0 {
		return nil
	}
	return open[s.rng.Intn(len(open))]
}

// MarkAnswered records a question as used. Idempotent.
func (s *Selector) MarkAnswered(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answered[id] = struct{}{}
}

// SeedAnswered merges previously answered ids, typically fetched from
// the backend at bootstrap. Additive.
func (s *Selector) SeedAnswered(ids []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.answered[id] = struct{}{}
	}
}

// AnsweredIDs returns the answered set in ascending order, for
// inclusion in save snapshots.
func (s *Selector) AnsweredIDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.answered))
	for id := range s.answered {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// AnsweredCount returns the size of the answered set.
func (s *Selector) AnsweredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.answered)
}

// Reset clears the answered set.
func (s *Selector) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answered = make(map[int]struct{})
}
