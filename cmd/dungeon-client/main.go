// Command dungeon-client is a headless terminal client for the Data
// Science Dungeon backend. It maps stdin commands to game intents and
// prints the run state as it changes, which also makes it a handy
// end-to-end smoke tool against a running server.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"dsdungeon/apiclient"
	"dsdungeon/config"
	"dsdungeon/game/progress"
	"dsdungeon/game/question"
	"dsdungeon/game/run"
	"dsdungeon/game/session"
	"dsdungeon/scheduler"
	"go.uber.org/zap"
)

// stdinInput holds the current input state. Direction keys latch until
// "stop"; activate is a one-frame pulse.
type stdinInput struct {
	mu       sync.Mutex
	in       session.Input
	activate bool
}

func (s *stdinInput) Current() session.Input {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.in
	out.Activate = s.activate
	s.activate = false
	return out
}

func (s *stdinInput) setDirection(dir string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch dir {
	case "up":
		s.in.Up = on
	case "down":
		s.in.Down = on
	case "left":
		s.in.Left = on
	case "right":
		s.in.Right = on
	}
}

func (s *stdinInput) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.in = session.Input{}
}

func (s *stdinInput) pulseActivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activate = true
}

func main() {
	cfgPath := flag.String("config", "config/config.yaml", "config file path")
	email := flag.String("email", "", "account email (empty plays as guest)")
	password := flag.String("password", "", "account password")
	register := flag.Bool("register", false, "register a new account")
	username := flag.String("username", "", "username for registration")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	// One liveness probe decides online/offline for the whole session.
	client := apiclient.New(cfg.Client.ServerURL)
	online := client.Health(ctx)
	if online {
		fmt.Println("Connected to", cfg.Client.ServerURL)
	} else {
		fmt.Println("Backend unreachable; playing offline with local saves.")
	}

	authed := false
	if online && *email != "" {
		if *register {
			_, err = client.Register(ctx, *username, *email, *password)
		} else {
			_, err = client.Login(ctx, *email, *password)
		}
		if err != nil {
			fmt.Println("Auth failed:", err, "- continuing as guest.")
		} else {
			authed = true
			if u, err := client.Check(ctx); err == nil {
				fmt.Println("Logged in as", u.Username)
			}
		}
	}

	// Remote tiers only exist for an authenticated online session.
	var remoteQ question.RemoteSource
	var remoteP progress.Remote
	var recorder session.AnswerRecorder
	if online && authed {
		remoteQ = client
		remoteP = client
		recorder = client
	}

	bank := question.MustBank()
	var selOpts []question.SelectorOption
	if remoteQ != nil {
		selOpts = append(selOpts, question.WithRemote(remoteQ))
	}
	sel := question.NewSelector(bank, logger, selOpts...)
	store := progress.NewStore(remoteP, cfg.Client.SavePath, logger)
	state := run.NewState(logger)

	// Seed the lifetime answered set from the server so a fresh device
	// never re-serves old questions.
	if online && authed {
		if records, err := client.AnsweredQuestions(ctx); err == nil {
			ids := make([]int, 0, len(records))
			for _, rec := range records {
				ids = append(ids, rec.QuestionID)
			}
			sel.SeedAnswered(ids)
		}
	}

	input := &stdinInput{}
	events := session.Events{
		OnQuestion: func(q *question.Question, chest int) {
			fmt.Printf("\n[Chest %d] %s (%s)\n", chest, q.QuestionText, q.Difficulty)
			fmt.Printf("  A) %s\n  B) %s\n  C) %s\n  D) %s\n> answer a/b/c/d\n",
				q.OptionA, q.OptionB, q.OptionC, q.OptionD)
		},
		OnChestOpened: func(chest, points int) {
			fmt.Printf("Chest %d opened! +%d points\n", chest, points)
		},
		OnRoomComplete: func(room int) {
			fmt.Printf("Room %d complete - the portal glows. Walk in and press e.\n", room)
		},
		OnRoomEntered: func(room int) {
			fmt.Printf("\n=== Room %d ===\n", room)
		},
		OnGameOver: func() {
			fmt.Println("\nThe darkness wins. Game over.")
		},
		OnVictory: func() {
			fmt.Println("\nYou escaped the dungeon. Victory!")
		},
	}
	ctrl := session.NewController(state, sel, store, recorder, events, logger)

	state.Subscribe(func(st *run.State) {
		if st.Phase() == run.PhasePlaying {
			fmt.Printf("[room %d | health %d | score %d]\n", st.CurrentRoom, st.Health, st.Score)
		}
	})

	sched := scheduler.New(logger)
	defer sched.Stop()
	sched.Every("autosave", time.Duration(cfg.Client.AutosaveS)*time.Second, func() {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ctrl.SaveNow(saveCtx)
	})

	frame := time.Duration(cfg.Game.FrameTickMs) * time.Millisecond
	var loopMu sync.Mutex
	var loopCancel context.CancelFunc

	startLoop := func() {
		loopMu.Lock()
		defer loopMu.Unlock()
		if loopCancel != nil {
			loopCancel()
		}
		loopCtx, cancel := context.WithCancel(ctx)
		loopCancel = cancel
		go ctrl.Run(loopCtx, frame, input)
	}

	if store.HasSave(ctx) {
		fmt.Println("Saved game found. Commands: new, continue")
	} else {
		fmt.Println("Commands: new (start), up/down/left/right, stop, e (interact), a-d (answer), pause, resume, board, quit")
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		cmd := strings.ToLower(strings.TrimSpace(scanner.Text()))
		switch cmd {
		case "":
		case "new":
			ctrl.NewGame(ctx)
			startLoop()
		case "continue":
			if ctrl.Continue(ctx) {
				startLoop()
			} else {
				fmt.Println("No resumable save.")
			}
		case "up", "down", "left", "right":
			input.setDirection(cmd, true)
		case "stop":
			input.stop()
		case "e":
			input.pulseActivate()
		case "a", "b", "c", "d":
			ctrl.ResolveAnswer(ctx, strings.ToUpper(cmd))
		case "pause":
			ctrl.Pause()
		case "resume":
			ctrl.Resume()
		case "board":
			printLeaderboard(ctx, client, online)
		case "quit":
			ctrl.QuitToMenu(ctx)
			fmt.Println("Bye.")
			return
		default:
			fmt.Println("Unknown command:", cmd)
		}
	}
}

func printLeaderboard(ctx context.Context, client *apiclient.Client, online bool) {
	if !online {
		fmt.Println("Leaderboard needs a backend connection.")
		return
	}
	entries, err := client.Leaderboard(ctx)
	if err != nil {
		fmt.Println("Leaderboard unavailable:", err)
		return
	}
	if len(entries) == 0 {
		fmt.Println("No scores yet.")
		return
	}
	for _, e := range entries {
		fmt.Printf("%2d. %-20s %6d pts  rooms %d\n", e.Rank, e.Username, e.Score, e.RoomsCompleted)
	}
}
