package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"dsdungeon/game/question"
)

// Default per-call deadlines. Progress and liveness calls sit on the
// game loop's critical path and get the tighter budget.
const (
	DefaultTimeout  = 3 * time.Second
	ProgressTimeout = 2 * time.Second
)

// Client talks to the dungeon backend. The zero token means anonymous;
// SetToken after Login/Register upgrades the session.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

// SetToken installs the bearer token used on authenticated calls.
func (c *Client) SetToken(token string) { c.token = token }

// Token returns the current bearer token, empty when anonymous.
func (c *Client) Token() string { return c.token }

// APIError is a non-2xx response carrying the server's message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

// do issues one JSON request and decodes the response into out (when
// non-nil).
func (c *Client) do(ctx context.Context, timeout time.Duration, method, path string, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encode request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode response: %w", err)
	}
	return nil
}

// errorMessage pulls the "error" or "detail" field out of an error
// body, falling back to the raw text.
func errorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 4096))
	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Detail != "" {
			return payload.Detail
		}
	}
	return string(raw)
}

// ---- users ----

// TokenResponse is the register/login reply.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// User is the profile shape.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Register creates an account and installs the returned token.
func (c *Client) Register(ctx context.Context, username, email, password string) (*TokenResponse, error) {
	body := map[string]string{"username": username, "email": email, "password": password}
	var tok TokenResponse
	if err := c.do(ctx, DefaultTimeout, http.MethodPost, "/api/users/register", body, &tok); err != nil {
		return nil, err
	}
	c.token = tok.AccessToken
	return &tok, nil
}

// Login authenticates and installs the returned token.
func (c *Client) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	body := map[string]string{"email": email, "password": password}
	var tok TokenResponse
	if err := c.do(ctx, DefaultTimeout, http.MethodPost, "/api/users/login", body, &tok); err != nil {
		return nil, err
	}
	c.token = tok.AccessToken
	return &tok, nil
}

// Profile fetches the authenticated user's profile.
func (c *Client) Profile(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, DefaultTimeout, http.MethodGet, "/api/users/profile", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Check validates the current token and returns the user it belongs to.
func (c *Client) Check(ctx context.Context) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, DefaultTimeout, http.MethodGet, "/api/users/check", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// ---- progress ----

// Progress is the server-side save snapshot. BrightnessLevel is the
// wire name of health.
type Progress struct {
	ID              int64  `json:"id"`
	UserID          int64  `json:"user_id"`
	CurrentRoom     int    `json:"current_room"`
	BrightnessLevel int    `json:"brightness_level"`
	TotalCorrect    int    `json:"total_correct"`
	TotalIncorrect  int    `json:"total_incorrect"`
	Score           int    `json:"score"`
	GameCompleted   bool   `json:"game_completed"`
	ChestStates     string `json:"chest_states"` // JSON array of {room, chest}
	LastSaved       string `json:"last_saved"`
}

// ProgressUpdate is the PUT payload, a full snapshot.
type ProgressUpdate struct {
	CurrentRoom     int         `json:"current_room"`
	BrightnessLevel int         `json:"brightness_level"`
	TotalCorrect    int         `json:"total_correct"`
	TotalIncorrect  int         `json:"total_incorrect"`
	Score           int         `json:"score"`
	GameCompleted   bool        `json:"game_completed"`
	ChestStates     interface{} `json:"chest_states"`
}

// GetProgress fetches the save, creating a fresh one server-side when
// absent.
func (c *Client) GetProgress(ctx context.Context) (*Progress, error) {
	var p Progress
	if err := c.do(ctx, ProgressTimeout, http.MethodGet, "/api/progress", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProgress resets the save to new-game values.
func (c *Client) CreateProgress(ctx context.Context) (*Progress, error) {
	var p Progress
	if err := c.do(ctx, ProgressTimeout, http.MethodPost, "/api/progress", struct{}{}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProgress uploads a full snapshot. Last write wins.
func (c *Client) UpdateProgress(ctx context.Context, upd ProgressUpdate) (*Progress, error) {
	var p Progress
	if err := c.do(ctx, ProgressTimeout, http.MethodPut, "/api/progress", upd, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProgress removes the save and the user's answered records.
func (c *Client) DeleteProgress(ctx context.Context) error {
	return c.do(ctx, ProgressTimeout, http.MethodDelete, "/api/progress", nil, nil)
}

// ---- questions ----

// QuestionByRoomChest fetches an unanswered question for the room and
// chest, difficulty chosen server-side.
func (c *Client) QuestionByRoomChest(ctx context.Context, room, chest int) (*question.Question, error) {
	path := fmt.Sprintf("/api/questions/by-room-chest?room=%d&chest=%d", room, chest)
	var q question.Question
	if err := c.do(ctx, DefaultTimeout, http.MethodGet, path, nil, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// RandomQuestion fetches a random question, optionally filtered by
// difficulty and excluding ids.
func (c *Client) RandomQuestion(ctx context.Context, difficulty string, excludeIDs []int) (*question.Question, error) {
	params := url.Values{}
	if difficulty != "" {
		params.Set("difficulty", difficulty)
	}
	if len(excludeIDs) > 0 {
		ids := ""
		for i, id := range excludeIDs {
			if i > 0 {
				ids += ","
			}
			ids += strconv.Itoa(id)
		}
		params.Set("exclude_ids", ids)
	}
	path := "/api/questions/random"
	if enc := params.Encode(); enc != "" {
		path += "?" + enc
	}
	var q question.Question
	if err := c.do(ctx, DefaultTimeout, http.MethodGet, path, nil, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// AnsweredRecord is one row of the user's answer history.
type AnsweredRecord struct {
	ID                int64  `json:"id"`
	QuestionID        int    `json:"question_id"`
	AnsweredCorrectly bool   `json:"answered_correctly"`
	RoomNumber        *int   `json:"room_number"`
	AnsweredAt        string `json:"answered_at"`
}

// MarkAnswered records an answer server-side. Upsert keyed on
// (user, question).
func (c *Client) MarkAnswered(ctx context.Context, questionID int, correct bool, roomNumber int) error {
	body := map[string]interface{}{
		"question_id":        questionID,
		"answered_correctly": correct,
		"room_number":        roomNumber,
	}
	return c.do(ctx, DefaultTimeout, http.MethodPost, "/api/questions/answered", body, nil)
}

// AnsweredQuestions lists the user's answer history.
func (c *Client) AnsweredQuestions(ctx context.Context) ([]AnsweredRecord, error) {
	var out []AnsweredRecord
	if err := c.do(ctx, DefaultTimeout, http.MethodGet, "/api/questions/answered", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats is the catalog breakdown, with per-user counters when
// authenticated.
type Stats struct {
	TotalQuestions int            `json:"total_questions"`
	ByDifficulty   map[string]int `json:"by_difficulty"`
	Answered       int            `json:"answered"`
	Remaining      int            `json:"remaining"`
}

// QuestionStats fetches catalog totals by difficulty.
func (c *Client) QuestionStats(ctx context.Context) (*Stats, error) {
	var s Stats
	if err := c.do(ctx, DefaultTimeout, http.MethodGet, "/api/questions/stats", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ---- leaderboard ----

// LeaderboardEntry is one row of the public top-10 board.
type LeaderboardEntry struct {
	Rank           int    `json:"rank"`
	Username       string `json:"username"`
	Score          int    `json:"score"`
	RoomsCompleted int    `json:"rooms_completed"`
	GameCompleted  bool   `json:"game_completed"`
}

// Leaderboard fetches the public top players.
func (c *Client) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	var out []LeaderboardEntry
	if err := c.do(ctx, DefaultTimeout, http.MethodGet, "/api/leaderboard", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ---- liveness ----

// Health probes the backend once. Used at bootstrap to decide
// online/offline for the whole session.
func (c *Client) Health(ctx context.Context) bool {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, ProgressTimeout, http.MethodGet, "/health", nil, &out); err != nil {
		return false
	}
	return out.Status == "ok"
}
