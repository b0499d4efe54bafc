package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/isdelr/tasktracker-be/internal/api"
	"github.com/isdelr/tasktracker-be/internal/auth"
	"github.com/isdelr/tasktracker-be/internal/database"
	"github.com/isdelr/tasktracker-be/internal/services"
	"github.com/isdelr/tasktracker-be/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestIssuer() *auth.TokenIssuer {
	return auth.NewTokenIssuer("test-secret", time.Hour, "tasktracker")
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := database.New(database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))

	hub := websocket.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	eventService := services.NewEventService(db)
	router := api.NewRouter(api.Dependencies{
		Issuer:         newTestIssuer(),
		UserService:    services.NewUserService(db, auth.NewPasswordHasher(bcrypt.MinCost)),
		TaskService:    services.NewTaskService(db, eventService, hub),
		EventService:   eventService,
		Hub:            hub,
		DB:             db,
		AllowedOrigins: []string{"http://localhost:3000"},
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

type client struct {
	t     *testing.T
	base  string
	token string
}

func (c *client) do(method, path string, body interface{}) (int, map[string]interface{}) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	require.NoError(c.t, err)
	var out map[string]interface{}
	if len(bytes.TrimSpace(raw)) > 0 {
		require.NoError(c.t, json.Unmarshal(raw, &out), "body: %s", raw)
	}
	return res.StatusCode, out
}

func register(t *testing.T, base, name, email string) *client {
	t.Helper()
	c := &client{t: t, base: base}
	status, body := c.do(http.MethodPost, "/api/auth/register", map[string]string{
		"name": name, "email": email, "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, status, "body: %v", body)
	c.token = body["token"].(string)
	return c
}

func taskList(body map[string]interface{}) []map[string]interface{} {
	raw, _ := body["tasks"].([]interface{})
	out := make([]map[string]interface{}, len(raw))
	for i, item := range raw {
		out[i] = item.(map[string]interface{})
	}
	return out
}

func TestTaskLifecycle(t *testing.T) {
	srv := newTestServer(t)
	alice := register(t, srv.URL, "Alice", "alice@example.com")

	status, body := alice.do(http.MethodPost, "/api/tasks", map[string]interface{}{
		"title": "Write report", "priority": "High", "dueDate": "2024-01-10",
	})
	require.Equal(t, http.StatusCreated, status, "body: %v", body)
	assert.Equal(t, "Task created successfully", body["message"])
	task := body["task"].(map[string]interface{})
	id := task["id"].(string)
	assert.Equal(t, "Write report", task["title"])
	assert.Equal(t, "High", task["priority"])
	assert.Equal(t, "Pending", task["status"])
	assert.Equal(t, "2024-01-10", task["dueDate"])
	assert.Nil(t, task["description"])

	status, body = alice.do(http.MethodGet, "/api/tasks", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, taskList(body), 1)

	status, body = alice.do(http.MethodPatch, "/api/tasks/"+id+"/toggle", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Completed", body["status"])

	status, body = alice.do(http.MethodGet, "/api/tasks?status=Completed", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, taskList(body), 1)

	status, body = alice.do(http.MethodGet, "/api/tasks?status=Pending", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, taskList(body))

	status, body = alice.do(http.MethodPut, "/api/tasks/"+id, map[string]interface{}{
		"description": "Quarterly numbers", "dueDate": nil,
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Quarterly numbers", body["description"])
	assert.Nil(t, body["dueDate"])
	assert.Equal(t, "Write report", body["title"])

	for _, want := range []string{"Pending", "Completed"} {
		status, body = alice.do(http.MethodPut, "/api/tasks/"+id, map[string]interface{}{"status": want})
		require.Equal(t, http.StatusOK, status, "body: %v", body)
		assert.Equal(t, want, body["status"])
		assert.Equal(t, "Write report", body["title"])
		assert.Equal(t, "High", body["priority"])
		assert.Equal(t, "Quarterly numbers", body["description"])
		assert.Nil(t, body["dueDate"])
	}

	status, body = alice.do(http.MethodGet, "/api/tasks/"+id, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Completed", body["status"])
	assert.Equal(t, "Quarterly numbers", body["description"])

	bob := register(t, srv.URL, "Bob", "bob@example.com")
	status, body = bob.do(http.MethodGet, "/api/tasks/"+id, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Task not found", body["message"])
	status, _ = bob.do(http.MethodDelete, "/api/tasks/"+id, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = alice.do(http.MethodDelete, "/api/tasks/"+id, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Nil(t, body)

	status, _ = alice.do(http.MethodGet, "/api/tasks/"+id, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = alice.do(http.MethodGet, "/api/events?limit=10", nil)
	require.Equal(t, http.StatusOK, status)
	events := body["events"].([]interface{})
	require.Len(t, events, 6)
	assert.Equal(t, "task.deleted", events[0].(map[string]interface{})["type"])
}

func TestAuthEndpoints(t *testing.T) {
	srv := newTestServer(t)
	alice := register(t, srv.URL, "Alice", "alice@example.com")
	anon := &client{t: t, base: srv.URL}

	status, body := anon.do(http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Alice again", "email": "alice@example.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "User with this email already exists", body["message"])

	status, body = anon.do(http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Carol", "email": "not-an-email", "password": "123",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.EqualValues(t, http.StatusBadRequest, body["statusCode"])
	assert.Equal(t, "Bad Request", body["error"])
	assert.Contains(t, body["message"], "email")

	// 40 characters that bcrypt sees as 80 bytes.
	status, body = anon.do(http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Dana", "email": "dana@example.com", "password": strings.Repeat("é", 40),
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Password must be at most 72 bytes", body["message"])

	status, body = anon.do(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "alice@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid email or password", body["message"])

	status, body = anon.do(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "Alice@Example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Login successful", body["message"])
	assert.NotEmpty(t, body["token"])
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "alice@example.com", user["email"])

	claims, err := newTestIssuer().VerifyToken(body["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, user["id"], claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.NotContains(t, user, "password")
	assert.NotContains(t, user, "passwordHash")

	status, body = alice.do(http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Alice", body["name"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)
	anon := &client{t: t, base: srv.URL}
	forged := &client{t: t, base: srv.URL, token: "forged.token.value"}

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/api/tasks"},
		{http.MethodPost, "/api/tasks"},
		{http.MethodGet, "/api/tasks/some-id"},
		{http.MethodPut, "/api/tasks/some-id"},
		{http.MethodDelete, "/api/tasks/some-id"},
		{http.MethodPatch, "/api/tasks/some-id/toggle"},
		{http.MethodGet, "/api/events"},
		{http.MethodGet, "/api/ws"},
	} {
		status, body := anon.do(route.method, route.path, nil)
		assert.Equal(t, http.StatusUnauthorized, status, "%s %s", route.method, route.path)
		assert.Equal(t, "Unauthorized", body["error"])

		status, _ = forged.do(route.method, route.path, nil)
		assert.Equal(t, http.StatusUnauthorized, status, "%s %s", route.method, route.path)
	}

	status, _ := anon.do(http.MethodGet, "/api/tasks?access_token=anything", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestTaskValidationErrors(t *testing.T) {
	srv := newTestServer(t)
	alice := register(t, srv.URL, "Alice", "alice@example.com")

	status, body := alice.do(http.MethodPost, "/api/tasks", map[string]interface{}{"title": "  "})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Title is required", body["message"])

	status, _ = alice.do(http.MethodPost, "/api/tasks", map[string]interface{}{"title": "x", "priority": "Urgent"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = alice.do(http.MethodPost, "/api/tasks", map[string]interface{}{"title": "x", "dueDate": "next week"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = alice.do(http.MethodPost, "/api/tasks", map[string]interface{}{"title": "x"})
	require.Equal(t, http.StatusCreated, status)
	id := body["task"].(map[string]interface{})["id"].(string)

	status, body = alice.do(http.MethodPut, "/api/tasks/"+id, map[string]interface{}{"title": ""})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Title cannot be empty", body["message"])

	status, body = alice.do(http.MethodGet, "/api/tasks?status=Bogus&priority=Nope&sortBy=whatever", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, taskList(body), 1)
}

func TestPingAndClient(t *testing.T) {
	srv := newTestServer(t)

	res, err := http.Get(srv.URL + "/api/ping")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	page, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(page), "Task Manager")
}

func TestLiveUpdates(t *testing.T) {
	srv := newTestServer(t)
	alice := register(t, srv.URL, "Alice", "alice@example.com")
	bob := register(t, srv.URL, "Bob", "bob@example.com")

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?access_token=" + alice.token
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The hub registers the client just after the handshake, so keep
	// creating tasks until the first update arrives.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-time.After(20 * time.Millisecond):
			}
			b, _ := json.Marshal(map[string]string{"title": "Live"})
			for _, token := range []string{bob.token, alice.token} {
				req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/tasks", bytes.NewReader(b))
				req.Header.Set("Authorization", "Bearer "+token)
				if res, err := http.DefaultClient.Do(req); err == nil {
					res.Body.Close()
				}
			}
		}
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Action  string                 `json:"action"`
		Payload map[string]interface{} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "task.created", msg.Action)
	assert.Equal(t, "Live", msg.Payload["title"])

	_, me := alice.do(http.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, me["id"], msg.Payload["userId"])
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	srv := newTestServer(t)
	alice := register(t, srv.URL, "Alice", "alice@example.com")

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?access_token=" + alice.token
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, res, err := gorillaws.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}
