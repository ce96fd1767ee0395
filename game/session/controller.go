package session

import (
	"context"
	"sync"
	"time"

	"dsdungeon/game/progress"
	"dsdungeon/game/question"
	"dsdungeon/game/run"
	"dsdungeon/game/world"
	"go.uber.org/zap"
)

// PlayerSpeed is movement in room units per second (4 units per frame
// at the original 60fps).
const PlayerSpeed = 240.0

// Chest point values by chest slot, multiplied by room number.
var chestPoints = [3]int{100, 150, 200}

// Points returns the score value of a chest in a room. Chest slots
// outside 1..3 score as slot 1.
func Points(room, chest int) int {
	if chest < 1 || chest > 3 {
		chest = 1
	}
	return chestPoints[chest-1] * room
}

// Input is the abstract per-frame input state. Activate follows the
// original space key: the controller acts on its rising edge only.
type Input struct {
	Up, Down, Left, Right bool
	Activate              bool
}

// AnswerRecorder posts answer records to the backend. Nil when the
// session is offline or anonymous.
type AnswerRecorder interface {
	MarkAnswered(ctx context.Context, questionID int, correct bool, roomNumber int) error
}

// Events are optional hooks into notable session moments. All run on
// the controller goroutine; keep them fast.
type Events struct {
	OnQuestion     func(q *question.Question, chest int)
	OnChestOpened  func(chest int, points int)
	OnRoomComplete func(room int)
	OnRoomEntered  func(room int)
	OnGameOver     func()
	OnVictory      func()
}

// Controller drives one play session: player movement, chest and
// portal interaction, question flow and persistence. State stays pure;
// every durable side effect happens here.
type Controller struct {
	mu sync.Mutex

	state    *run.State
	selector *question.Selector
	store    *progress.Store
	recorder AnswerRecorder
	events   Events
	logger   *zap.Logger

	room      *world.Room
	playerPos world.Vec2

	pendingQuestion *question.Question
	pendingChest    int
	prevActivate    bool
	paused          bool
	stopped         bool

	saves    sync.WaitGroup // in-flight background saves
	lastSave chan struct{}  // tail of the save chain, for ordering
}

func NewController(state *run.State, sel *question.Selector, store *progress.Store, rec AnswerRecorder, events Events, logger *zap.Logger) *Controller {
	return &Controller{
		state:    state,
		selector: sel,
		store:    store,
		recorder: rec,
		events:   events,
		logger:   logger,
	}
}

// State exposes the run state for read-side consumers (UI rendering).
func (c *Controller) State() *run.State { return c.state }

// PlayerPos returns the current player position.
func (c *Controller) PlayerPos() world.Vec2 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerPos
}

// Room returns the active room, nil before a game starts.
func (c *Controller) Room() *world.Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// PendingQuestion returns the question awaiting an answer, if any.
func (c *Controller) PendingQuestion() *question.Question {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingQuestion
}

// NewGame starts a fresh run in room 1.
func (c *Controller) NewGame(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Reset()
	c.state.SetPhase(run.PhasePlaying)
	c.stopped = false
	c.paused = false
	c.pendingQuestion = nil
	c.enterRoom(c.state.CurrentRoom)
	c.logger.Info("new game started")
}

// Continue resumes from the newest save. A save must be past room 1 to
// be resumable; a dead save (health gone) is cleared and ignored.
// Returns false when no usable save exists.
func (c *Controller) Continue(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap, ok := c.store.Load(ctx)
	if !ok {
		return false
	}
	if snap.Health <= 0 || snap.GameCompleted {
		c.logger.Info("discarding finished save",
			zap.Int("health", snap.Health), zap.Bool("completed", snap.GameCompleted))
		c.store.Clear(ctx)
		return false
	}

	c.state.Reset()
	snap.Apply(c.state)
	c.selector.SeedAnswered(snap.AnsweredIDs)
	c.state.SetPhase(run.PhasePlaying)
	c.stopped = false
	c.paused = false
	c.pendingQuestion = nil
	c.enterRoom(c.state.CurrentRoom)
	c.logger.Info("continued saved game",
		zap.Int("room", snap.CurrentRoom), zap.Int("score", snap.Score))
	return true
}

// enterRoom builds the room, restores its chest progress and respawns
// the player. Callers hold the lock.
func (c *Controller) enterRoom(number int) {
	c.room = world.NewRoom(number)
	c.room.SyncState(c.state)
	c.playerPos = world.PlayerStart
	if c.events.OnRoomEntered != nil {
		c.events.OnRoomEntered(number)
	}
}

// Step advances the session by dt. No-op unless actively playing.
func (c *Controller) Step(ctx context.Context, dt float64, in Input) {
	c.mu.Lock()
	defer c.mu.Unlock()

	risingActivate := in.Activate && !c.prevActivate
	c.prevActivate = in.Activate

	if c.stopped || c.paused || c.pendingQuestion != nil || c.state.Phase() != run.PhasePlaying {
		return
	}

	c.movePlayer(dt, in)

	if risingActivate {
		if chest := c.room.NearbyChest(c.playerPos); chest != nil {
			c.activateChest(ctx, chest)
			return
		}
		if c.room.AtPortal(c.playerPos) {
			c.enterPortal(ctx)
		}
	}
}

func (c *Controller) movePlayer(dt float64, in Input) {
	d := PlayerSpeed * dt
	if in.Up {
		c.playerPos.Y -= d
	}
	if in.Down {
		c.playerPos.Y += d
	}
	if in.Left {
		c.playerPos.X -= d
	}
	if in.Right {
		c.playerPos.X += d
	}
	c.playerPos = world.ClampToWalls(c.playerPos)
}

// activateChest starts the question flow for a chest. When the catalog
// is exhausted the chest opens free of charge.
func (c *Controller) activateChest(ctx context.Context, chest *world.Chest) {
	q := c.selector.Select(ctx, c.room.Number, chest.Number)
	if q == nil {
		c.logger.Info("question catalog exhausted, opening chest",
			zap.Int("room", c.room.Number), zap.Int("chest", chest.Number))
		c.completeChest(ctx, chest.Number)
		return
	}
	// Mark immediately so a quit mid-question cannot re-serve it.
	c.selector.MarkAnswered(q.ID)
	c.pendingQuestion = q
	c.pendingChest = chest.Number
	if c.events.OnQuestion != nil {
		c.events.OnQuestion(q, chest.Number)
	}
}

// ResolveAnswer answers the pending question with an option label.
func (c *Controller) ResolveAnswer(ctx context.Context, label string) {
	c.mu.Lock()
	q := c.pendingQuestion
	c.mu.Unlock()
	if q == nil {
		return
	}
	c.CompleteQuestion(ctx, q.IsCorrect(label))
}

// CompleteQuestion settles the pending question as correct or not.
func (c *Controller) CompleteQuestion(ctx context.Context, wasCorrect bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := c.pendingQuestion
	if q == nil {
		return
	}
	chest := c.pendingChest
	c.pendingQuestion = nil
	c.pendingChest = 0

	c.recordAnswer(q.ID, wasCorrect, c.room.Number)

	if wasCorrect {
		c.completeChest(ctx, chest)
		return
	}

	if over := c.state.AnswerIncorrect(); over {
		c.logger.Info("game over", zap.Int("room", c.room.Number), zap.Int("score", c.state.Score))
		c.stopped = true
		c.saves.Wait() // a stale background save must not outlive the clear
		c.store.Clear(ctx)
		if c.events.OnGameOver != nil {
			c.events.OnGameOver()
		}
		return
	}
	c.saveAsync()
}

// completeChest opens the chest, scores it and persists. Callers hold
// the lock.
func (c *Controller) completeChest(ctx context.Context, chestNumber int) {
	for _, wc := range c.room.Chests {
		if wc.Number == chestNumber {
			wc.Completed = true
		}
	}
	c.state.OpenChest(c.room.Number, chestNumber)

	pts := Points(c.room.Number, chestNumber)
	c.state.AnswerCorrect(pts)
	if c.events.OnChestOpened != nil {
		c.events.OnChestOpened(chestNumber, pts)
	}

	if c.room.ActivatePortalIfComplete() {
		c.saveAsync()
		if c.events.OnRoomComplete != nil {
			c.events.OnRoomComplete(c.room.Number)
		}
		return
	}
	c.saveAsync()
}

// enterPortal advances to the next room or finishes the run. Callers
// hold the lock.
func (c *Controller) enterPortal(ctx context.Context) {
	if victory := c.state.NextRoom(); victory {
		c.logger.Info("dungeon completed", zap.Int("score", c.state.Score))
		c.stopped = true
		c.saves.Wait()
		c.store.Clear(ctx)
		if c.events.OnVictory != nil {
			c.events.OnVictory()
		}
		return
	}
	c.enterRoom(c.state.CurrentRoom)
	c.saveAsync()
}

func (c *Controller) snapshot() *progress.Snapshot {
	return progress.FromState(c.state, c.selector.AnsweredIDs())
}

// recordAnswer posts the answer record in the background. Callers hold
// the lock.
func (c *Controller) recordAnswer(questionID int, correct bool, room int) {
	if c.recorder == nil {
		return
	}
	go func() {
		if err := c.recorder.MarkAnswered(context.Background(), questionID, correct, room); err != nil {
			c.logger.Warn("answer record failed", zap.Int("question", questionID), zap.Error(err))
		}
	}()
}

// queueSave snapshots now and links the save into the chain, so later
// saves can never be overtaken by earlier ones. Callers hold the lock.
// The returned function performs the save and may block on IO.
func (c *Controller) queueSave() func(ctx context.Context) bool {
	snap := c.snapshot()
	prev := c.lastSave
	done := make(chan struct{})
	c.lastSave = done
	c.saves.Add(1)
	return func(ctx context.Context) bool {
		defer c.saves.Done()
		defer close(done)
		if prev != nil {
			<-prev
		}
		return c.store.Save(ctx, snap)
	}
}

// saveAsync persists the current state in the background, so the frame
// loop never waits on persistence IO. Callers hold the lock.
func (c *Controller) saveAsync() {
	save := c.queueSave()
	go func() {
		if !save(context.Background()) {
			c.logger.Warn("background save failed everywhere")
		}
	}()
}

// SaveNow persists the current run before returning. Used by the
// autosave job; a no-op outside active play. The save IO runs outside
// the session lock so the frame loop keeps ticking.
func (c *Controller) SaveNow(ctx context.Context) {
	c.mu.Lock()
	if c.stopped || c.state.Health <= 0 {
		c.mu.Unlock()
		return
	}
	phase := c.state.Phase()
	if phase != run.PhasePlaying && phase != run.PhasePaused {
		c.mu.Unlock()
		return
	}
	save := c.queueSave()
	c.mu.Unlock()
	save(ctx)
}

// Pause suspends Step processing.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase() != run.PhasePlaying || c.paused {
		return
	}
	c.paused = true
	c.state.SetPhase(run.PhasePaused)
}

// Resume continues a paused session.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		return
	}
	c.paused = false
	c.state.SetPhase(run.PhasePlaying)
}

// QuitToMenu saves (when mid-run) and drops back to the menu. The
// final save joins the chain, so it lands after any background saves.
func (c *Controller) QuitToMenu(ctx context.Context) {
	c.mu.Lock()
	var save func(context.Context) bool
	if !c.stopped && c.state.Phase() != run.PhaseMenu && c.state.Health > 0 {
		save = c.queueSave()
	}
	c.stopped = true
	c.paused = false
	c.pendingQuestion = nil
	c.state.SetPhase(run.PhaseMenu)
	c.mu.Unlock()

	if save != nil {
		save(ctx)
	}
}

// Stopped reports whether the session has ended (game over, victory or
// quit).
func (c *Controller) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// InputSource supplies the current frame's input.
type InputSource interface {
	Current() Input
}

// Run drives Step on a fixed frame ticker until ctx ends or the
// session stops. Each tick is panic-isolated.
func (c *Controller) Run(ctx context.Context, frame time.Duration, input InputSource) {
	ticker := time.NewTicker(frame)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			c.tick(ctx, dt, input.Current())
			if c.Stopped() {
				return
			}
		}
	}
}

func (c *Controller) tick(ctx context.Context, dt float64, in Input) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("session tick panicked", zap.Any("recover", r))
		}
	}()
	c.Step(ctx, dt, in)
}
