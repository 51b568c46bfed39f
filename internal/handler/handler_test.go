package handler_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/movienight/internal/config"
	"github.com/user/movienight/internal/handler"
	"github.com/user/movienight/internal/middleware"
	"github.com/user/movienight/internal/model"
	"github.com/user/movienight/internal/repository"
	"github.com/user/movienight/internal/router"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Success bool            `json:"success"`
}

type sessionData struct {
	State  string          `json:"state"`
	User   *model.Identity `json:"user"`
	Reload bool            `json:"reload"`
}

// browser 模拟一个浏览器：共享 Cookie，可以有多个标签页
type browser struct {
	t      *testing.T
	server *httptest.Server
	client *http.Client
}

func setupTestServer(t *testing.T) *browser {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		AppSecret:         "test-secret",
		DocumentID:        "test-room",
		IdentityMode:      "pool",
		SwitchSettleDelay: time.Millisecond,
		DetachTimeout:     500 * time.Millisecond,
		PlanningSyncMode:  "replace",
		CatalogCacheTTL:   time.Minute,
		TMDBBaseURL:       "http://127.0.0.1:1",
	}
	repos := repository.NewRepositories(nil)
	h := handler.NewHandler(repos, cfg)

	// 测试服务器走明文 http，Cookie 不能带 Secure
	store := cookie.NewStore([]byte(cfg.AppSecret))
	store.Options(sessions.Options{Path: "/", HttpOnly: true})

	r := gin.New()
	r.Use(sessions.Sessions("movienight", store))
	router.RegisterRoutes(r, h)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return newBrowser(t, srv)
}

// newBrowser 同一服务器上的另一个浏览器（独立 Cookie）
func newBrowser(t *testing.T, srv *httptest.Server) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, server: srv, client: &http.Client{Jar: jar}}
}

func (b *browser) do(method, path, tab string, body interface{}) (int, envelope) {
	b.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(b.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, b.server.URL+path, reader)
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.ClientIDHeader, tab)

	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()

	var env envelope
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(b.t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestSessionStartsWithDefaultDemoUser(t *testing.T) {
	b := setupTestServer(t)

	code, env := b.do(http.MethodGet, "/api/session", "tab-a", nil)
	require.Equal(t, http.StatusOK, code)

	s := decode[sessionData](t, env.Data)
	assert.Equal(t, "attached", s.State)
	require.NotNil(t, s.User)
	assert.Equal(t, "Sarah Chen", s.User.Name)

	code, env = b.do(http.MethodGet, "/api/presence", "tab-a", nil)
	require.Equal(t, http.StatusOK, code)
	entries := decode[[]model.PresenceEntry](t, env.Data)
	require.Len(t, entries, 1)
	assert.Equal(t, "user-1", entries[0].ID)
}

func TestSwitchUserPersistsAcrossTabs(t *testing.T) {
	b := setupTestServer(t)
	b.do(http.MethodGet, "/api/session", "tab-a", nil)

	code, env := b.do(http.MethodPost, "/api/session/switch", "tab-a", gin.H{"userId": "user-2"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Mike Johnson", decode[sessionData](t, env.Data).User.Name)

	// 同一浏览器新开的标签页读到新身份
	_, env = b.do(http.MethodGet, "/api/session", "tab-b", nil)
	assert.Equal(t, "user-2", decode[sessionData](t, env.Data).User.UserID)

	code, _ = b.do(http.MethodPost, "/api/session/switch", "tab-a", gin.H{"userId": "user-99"})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = b.do(http.MethodPost, "/api/session/switch", "tab-a", gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestTabIDsAreScopedPerBrowser(t *testing.T) {
	a := setupTestServer(t)
	b := newBrowser(t, a.server)

	a.do(http.MethodGet, "/api/session", "tab-1", nil)
	code, _ := a.do(http.MethodPost, "/api/session/switch", "tab-1", gin.H{"userId": "user-2"})
	require.Equal(t, http.StatusOK, code)

	// 另一个浏览器声明同样的标签页 ID，拿不到 A 的会话
	code, _ = b.do(http.MethodPost, "/api/planning", "tab-1", gin.H{"movie": gin.H{"id": 1, "title": "The Dark Knight"}})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = b.do(http.MethodPost, "/api/session/heartbeat", "tab-1", nil)
	assert.Equal(t, http.StatusConflict, code)

	_, env := b.do(http.MethodGet, "/api/session", "tab-1", nil)
	assert.Equal(t, "user-1", decode[sessionData](t, env.Data).User.UserID)

	code, _ = b.do(http.MethodPost, "/api/session/signout", "tab-1", nil)
	require.Equal(t, http.StatusOK, code)

	_, env = a.do(http.MethodGet, "/api/presence", "tab-1", nil)
	entries := decode[[]model.PresenceEntry](t, env.Data)
	require.Len(t, entries, 1)
	assert.Equal(t, "user-2", entries[0].ID)

	_, env = a.do(http.MethodGet, "/api/session", "tab-1", nil)
	assert.Equal(t, "Mike Johnson", decode[sessionData](t, env.Data).User.Name)
}

func TestSignOutAndLeave(t *testing.T) {
	b := setupTestServer(t)
	b.do(http.MethodGet, "/api/session", "tab-a", nil)

	code, env := b.do(http.MethodPost, "/api/session/signout", "tab-a", nil)
	require.Equal(t, http.StatusOK, code)
	signedOut := decode[sessionData](t, env.Data)
	assert.Equal(t, "unattached", signedOut.State)
	assert.True(t, signedOut.Reload)

	b.do(http.MethodGet, "/api/session", "tab-a", nil)
	code, _ = b.do(http.MethodPost, "/api/session/leave", "tab-a", nil)
	assert.Equal(t, http.StatusNoContent, code)

	_, env = b.do(http.MethodGet, "/api/presence", "tab-other", nil)
	assert.Empty(t, decode[[]model.PresenceEntry](t, env.Data))
}

func TestHeartbeatRequiresSession(t *testing.T) {
	b := setupTestServer(t)

	code, _ := b.do(http.MethodPost, "/api/session/heartbeat", "tab-z", nil)
	assert.Equal(t, http.StatusConflict, code)

	b.do(http.MethodGet, "/api/session", "tab-z", nil)
	code, _ = b.do(http.MethodPost, "/api/session/heartbeat", "tab-z", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = b.do(http.MethodPost, "/api/session/visibility", "tab-z", gin.H{"hidden": true})
	assert.Equal(t, http.StatusOK, code)
}

func TestPlanningFlow(t *testing.T) {
	b := setupTestServer(t)

	movie := gin.H{"id": 1, "title": "The Dark Knight", "genre_ids": []int{28, 80, 18}}
	code, _ := b.do(http.MethodPost, "/api/planning", "tab-a", gin.H{"movie": movie})
	assert.Equal(t, http.StatusConflict, code, "adding requires an attached session")

	b.do(http.MethodGet, "/api/session", "tab-a", nil)
	code, env := b.do(http.MethodPost, "/api/planning", "tab-a", gin.H{"movie": movie})
	require.Equal(t, http.StatusOK, code)
	items := decode[[]model.PlanningItem](t, env.Data)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Votes)
	assert.Equal(t, "Sarah Chen", items[0].AddedBy.Name)
	id := items[0].ID

	code, env = b.do(http.MethodPost, "/api/planning/"+id+"/vote", "tab-a", gin.H{"rating": 3})
	require.Equal(t, http.StatusOK, code)
	items = decode[[]model.PlanningItem](t, env.Data)
	assert.Equal(t, 1, items[0].Votes)
	assert.Equal(t, 3, *items[0].UserVote)

	code, _ = b.do(http.MethodPost, "/api/planning/"+id+"/vote", "tab-a", gin.H{"rating": 9})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = b.do(http.MethodPost, "/api/planning/missing/vote", "tab-a", gin.H{"rating": 2})
	assert.Equal(t, http.StatusNotFound, code)

	code, env = b.do(http.MethodDelete, "/api/planning/"+id, "tab-a", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[[]model.PlanningItem](t, env.Data))

	_, env = b.do(http.MethodGet, "/api/planning?refresh=1", "tab-a", nil)
	assert.Empty(t, decode[[]model.PlanningItem](t, env.Data))
}

func TestCatalogEndpointsOffline(t *testing.T) {
	b := setupTestServer(t)

	code, env := b.do(http.MethodGet, "/api/catalog/trending", "tab-a", nil)
	require.Equal(t, http.StatusOK, code)
	category := decode[struct {
		Results []struct {
			ID        int    `json:"id"`
			PosterURL string `json:"posterUrl"`
		} `json:"results"`
	}](t, env.Data)
	require.Len(t, category.Results, 6)
	assert.True(t, strings.HasPrefix(category.Results[0].PosterURL, "https://image.tmdb.org/t/p/w500/"))

	code, _ = b.do(http.MethodGet, "/api/catalog/upcoming", "tab-a", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = b.do(http.MethodGet, "/api/search?q=night&type=tv&genres=80", "tab-a", nil)
	require.Equal(t, http.StatusOK, code)
	search := decode[struct {
		Results []model.Movie `json:"results"`
		Stale   bool          `json:"stale"`
	}](t, env.Data)
	require.Len(t, search.Results, 1)
	assert.Equal(t, "Breaking Bad", search.Results[0].Title)

	code, _ = b.do(http.MethodGet, "/api/search?q=night&genres=action", "tab-a", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = b.do(http.MethodGet, "/api/trailer/movie/1", "tab-a", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "https://www.youtube.com/embed/dQw4w9WgXcQ", decode[map[string]string](t, env.Data)["url"])

	code, _ = b.do(http.MethodGet, "/api/trailer/person/1", "tab-a", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	_, env = b.do(http.MethodGet, "/api/genres", "tab-a", nil)
	assert.Len(t, decode[[]model.Genre](t, env.Data), 10)
}

func TestSearchMarksSupersededResponses(t *testing.T) {
	b := setupTestServer(t)

	_, env := b.do(http.MethodGet, "/api/search?q=dune&seq=2", "tab-a", nil)
	assert.False(t, decode[map[string]interface{}](t, env.Data)["stale"].(bool))

	_, env = b.do(http.MethodGet, "/api/search?q=du&seq=1", "tab-a", nil)
	assert.True(t, decode[map[string]interface{}](t, env.Data)["stale"].(bool))

	// 其他标签页互不影响
	_, env = b.do(http.MethodGet, "/api/search?q=du&seq=1", "tab-b", nil)
	assert.False(t, decode[map[string]interface{}](t, env.Data)["stale"].(bool))
}

func TestEventsStreamIdentityChange(t *testing.T) {
	b := setupTestServer(t)
	b.do(http.MethodGet, "/api/session", "tab-a", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.server.URL+"/api/events?client_id=tab-a", nil)
	require.NoError(t, err)
	resp, err := b.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	events := readEvents(resp)
	waitForEvent(t, events, "planning")
	waitForEvent(t, events, "presence")

	// 同一浏览器的另一个标签页切换身份
	code, _ := b.do(http.MethodPost, "/api/session/switch", "tab-b", gin.H{"userId": "user-2"})
	require.Equal(t, http.StatusOK, code)

	data := waitForEvent(t, events, "identity")
	assert.JSONEq(t, `{"oldUserId":"user-1","newUserId":"user-2","reload":true}`, data)
}

type sseEvent struct {
	name string
	data string
}

func readEvents(resp *http.Response) <-chan sseEvent {
	out := make(chan sseEvent, 32)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(resp.Body)
		var name string
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event:"):
				name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				out <- sseEvent{name: name, data: strings.TrimSpace(strings.TrimPrefix(line, "data:"))}
			}
		}
	}()
	return out
}

func waitForEvent(t *testing.T, events <-chan sseEvent, name string) string {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case evt, ok := <-events:
			require.True(t, ok, "event stream closed before %s", name)
			if evt.name == name {
				return evt.data
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", name)
			return ""
		}
	}
}
