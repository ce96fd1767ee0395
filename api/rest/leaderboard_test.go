package rest_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPlayers(t *testing.T, s *testServer) {
	t.Helper()
	players := []struct {
		name  string
		score int
		room  int
		done  bool
	}{
		{"ada", 9000, 10, true},
		{"bob", 4500, 7, false},
		{"eve", 1200, 3, false},
	}
	for _, p := range players {
		token := s.register(t, p.name, p.name+"@example.com")
		w := s.do(t, http.MethodPut, "/api/progress", token, map[string]interface{}{
			"score": p.score, "current_room": p.room, "game_completed": p.done,
		})
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestLeaderboard_OrderAndShape(t *testing.T) {
	s := newTestServer(t)
	seedPlayers(t, s)

	w := s.do(t, http.MethodGet, "/api/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var entries []map[string]interface{}
	require.NoError(t, jsonUnmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 3)

	assert.Equal(t, "ada", entries[0]["username"])
	assert.Equal(t, float64(1), entries[0]["rank"])
	assert.Equal(t, float64(10), entries[0]["rooms_completed"])
	assert.Equal(t, true, entries[0]["game_completed"])

	assert.Equal(t, "bob", entries[1]["username"])
	assert.Equal(t, float64(6), entries[1]["rooms_completed"], "rooms completed is current room minus one")

	assert.Equal(t, "eve", entries[2]["username"])
	assert.Equal(t, float64(3), entries[2]["rank"])
}

func TestLeaderboard_Public(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestLeaderboard_CacheWarmsAfterFirstRead(t *testing.T) {
	s := newTestServer(t)
	seedPlayers(t, s)

	// First read comes from the DB and warms the ZSet.
	s.do(t, http.MethodGet, "/api/leaderboard", "", nil)

	members, err := s.cache.ZRevRange(context.Background(), "leaderboard:score", 0, 9)
	require.NoError(t, err)
	assert.Len(t, members, 3)

	// Second read resolves through the cache with identical ordering.
	w := s.do(t, http.MethodGet, "/api/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []map[string]interface{}
	require.NoError(t, jsonUnmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 3)
	assert.Equal(t, "ada", entries[0]["username"])
}

func TestLeaderboard_RefreshTracksScoreChanges(t *testing.T) {
	s := newTestServer(t)
	seedPlayers(t, s)
	s.do(t, http.MethodGet, "/api/leaderboard", "", nil)

	// eve overtakes everyone; the periodic refresh must reflect it.
	w := s.do(t, http.MethodPost, "/api/users/login", "", map[string]string{
		"email": "eve@example.com", "password": "hunter22",
	})
	require.Equal(t, http.StatusOK, w.Code)
	token := decodeJSON(t, w)["access_token"].(string)
	s.do(t, http.MethodPut, "/api/progress", token, map[string]interface{}{"score": 99999})

	s.boardH.Refresh(context.Background())

	var entries []map[string]interface{}
	w = s.do(t, http.MethodGet, "/api/leaderboard", "", nil)
	require.NoError(t, jsonUnmarshal(w.Body.Bytes(), &entries))
	assert.Equal(t, "eve", entries[0]["username"])
}
