package rest_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dsdungeon/api/rest"
	"dsdungeon/cache"
	"dsdungeon/config"
	"dsdungeon/game/question"
	mw "dsdungeon/middleware"
	"dsdungeon/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	cache  cache.Cache
	boardH *rest.LeaderboardHandler
}

// newTestServer wires the full API surface against an in-memory DB and
// local cache, mirroring the production route table.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	c := testutil.SetupTestCache(t)
	sec := config.SecurityConfig{JWTSecret: "test-secret", JWTTTLH: 72 * time.Hour}
	logger := zap.NewNop()

	userH := rest.NewUserHandler(db, c, sec)
	progressH := rest.NewProgressHandler(db)
	questionH := rest.NewQuestionHandler(db, logger)
	boardH := rest.NewLeaderboardHandler(db, c, 10, logger)
	require.NoError(t, questionH.SeedCatalog(question.MustBank()))

	auth := mw.Auth(sec, c)
	authOpt := mw.AuthOptional(sec, c)

	r := gin.New()
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})
	api := r.Group("/api")
	{
		api.POST("/users/register", userH.Register)
		api.POST("/users/login", userH.Login)
		api.POST("/users/logout", auth, userH.Logout)
		api.GET("/users/profile", auth, userH.Profile)
		api.GET("/users/check", auth, userH.Check)

		progressG := api.Group("/progress", auth)
		progressG.GET("", progressH.Get)
		progressG.POST("", progressH.Create)
		progressG.PUT("", progressH.Update)
		progressG.DELETE("", progressH.Delete)

		api.GET("/questions/by-room-chest", authOpt, questionH.ByRoomChest)
		api.GET("/questions/random", authOpt, questionH.Random)
		api.GET("/questions/stats", authOpt, questionH.Stats)
		api.POST("/questions/answered", auth, questionH.RecordAnswered)
		api.GET("/questions/answered", auth, questionH.ListAnswered)

		api.GET("/leaderboard", boardH.Get)
	}

	return &testServer{router: r, db: db, cache: c, boardH: boardH}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(buf)
	} else {
		reqBody = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reqBody)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// register creates an account and returns its bearer token.
func (s *testServer) register(t *testing.T, username, email string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/users/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": "hunter22",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func jsonUnmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}
