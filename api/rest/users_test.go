package rest_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_IssuesToken(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "ada", "ada@example.com")

	w := s.do(t, http.MethodGet, "/api/users/profile", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeJSON(t, w)
	assert.Equal(t, "ada", resp["username"])
	assert.Equal(t, "ada@example.com", resp["email"])
}

func TestRegister_DuplicateEmail(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "ada", "ada@example.com")

	w := s.do(t, http.MethodPost, "/api/users/register", "", map[string]string{
		"username": "ada2", "email": "ada@example.com", "password": "hunter22",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeJSON(t, w)["error"], "email already registered")
}

func TestRegister_DuplicateUsername(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "ada", "ada@example.com")

	w := s.do(t, http.MethodPost, "/api/users/register", "", map[string]string{
		"username": "ada", "email": "other@example.com", "password": "hunter22",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeJSON(t, w)["error"], "username already taken")
}

func TestRegister_InvalidEmailRejected(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/api/users/register", "", map[string]string{
		"username": "ada", "email": "not-an-email", "password": "hunter22",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegister_CreatesFreshProgress(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "ada", "ada@example.com")

	w := s.do(t, http.MethodGet, "/api/progress", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeJSON(t, w)
	assert.Equal(t, float64(1), resp["current_room"])
	assert.Equal(t, float64(100), resp["brightness_level"])
}

func TestLogin_Succeeds(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "ada", "ada@example.com")

	w := s.do(t, http.MethodPost, "/api/users/login", "", map[string]string{
		"email": "ada@example.com", "password": "hunter22",
	})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeJSON(t, w)
	assert.NotEmpty(t, resp["access_token"])
	assert.Equal(t, "bearer", resp["token_type"])
}

func TestLogin_WrongPassword(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "ada", "ada@example.com")

	w := s.do(t, http.MethodPost, "/api/users/login", "", map[string]string{
		"email": "ada@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, decodeJSON(t, w)["error"], "incorrect email or password")
}

func TestLogin_UnknownEmail(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/api/users/login", "", map[string]string{
		"email": "ghost@example.com", "password": "hunter22",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCheck_ValidToken(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "ada", "ada@example.com")

	w := s.do(t, http.MethodGet, "/api/users/check", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeJSON(t, w)
	assert.Equal(t, true, resp["authenticated"])
	user := resp["user"].(map[string]interface{})
	assert.Equal(t, "ada", user["username"])
}

func TestCheck_NoToken(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/users/check", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogout_InvalidatesSession(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "ada", "ada@example.com")

	w := s.do(t, http.MethodPost, "/api/users/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/users/profile", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
