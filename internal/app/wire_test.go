package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/officeladder/ladder/internal/avatar"
	"github.com/officeladder/ladder/internal/domain"
	"github.com/officeladder/ladder/internal/projection"
	"github.com/officeladder/ladder/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiClient struct {
	t      *testing.T
	server *httptest.Server
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()
	dir := t.TempDir()
	avatars, err := avatar.NewLocalStore(dir, AvatarURLPrefix)
	require.NoError(t, err)

	a := New(Deps{
		Store:          repository.NewMemoryStore(),
		Cache:          projection.NewInMemoryStore(),
		CacheTTL:       time.Minute,
		Avatars:        avatars,
		AvatarMaxBytes: 1024,
		AvatarDir:      dir,
		Location:       time.UTC,
		ChatRateLimit:  100,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	srv := httptest.NewServer(a.Router)
	t.Cleanup(srv.Close)
	return &apiClient{t: t, server: srv}
}

func (c *apiClient) do(method, path string, body interface{}) (int, []byte) {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.server.URL+path, rd)
	require.NoError(c.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req)
}

func (c *apiClient) send(req *http.Request) (int, []byte) {
	c.t.Helper()
	resp, err := c.server.Client().Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, data
}

func (c *apiClient) register(name, office, slackID string) domain.Player {
	c.t.Helper()
	body := map[string]string{"name": name, "office": office}
	if slackID != "" {
		body["slack_user_id"] = slackID
	}
	status, data := c.do(http.MethodPost, "/api/players", body)
	require.Equal(c.t, http.StatusCreated, status, string(data))
	var p domain.Player
	require.NoError(c.t, json.Unmarshal(data, &p))
	return p
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	return decode[map[string]string](t, data)["code"]
}

func TestAPI_Health(t *testing.T) {
	api := newAPI(t)
	status, data := api.do(http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(data), "healthy")
}

func TestAPI_PlayerLifecycle(t *testing.T) {
	api := newAPI(t)
	alice := api.register("  Alice ", "New York", "U01234567")
	assert.Equal(t, "Alice", alice.Name)
	assert.Equal(t, "new-york", alice.Office)

	status, data := api.do(http.MethodGet, "/api/players/"+alice.ID.String(), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, alice.ID, decode[domain.Player](t, data).ID)

	status, data = api.do(http.MethodGet, "/api/players/office/New%20York", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]domain.Player](t, data), 1)

	status, data = api.do(http.MethodPut, "/api/players/"+alice.ID.String(), map[string]string{"office": "Tempe"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "tempe", decode[domain.Player](t, data).Office)

	status, _ = api.do(http.MethodDelete, "/api/players/"+alice.ID.String(), nil)
	require.Equal(t, http.StatusOK, status)

	status, data = api.do(http.MethodGet, "/api/players", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "[]\n", string(data))
}

func TestAPI_PlayerErrors(t *testing.T) {
	api := newAPI(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{"bad id", http.MethodGet, "/api/players/not-a-uuid", nil, 400, "VALIDATION_ERROR"},
		{"unknown id", http.MethodGet, "/api/players/00000000-0000-0000-0000-000000000001", nil, 404, "PLAYER_NOT_FOUND"},
		{"missing name", http.MethodPost, "/api/players", map[string]string{"office": "tempe"}, 400, "VALIDATION_ERROR"},
		{"bad email", http.MethodPost, "/api/players", map[string]string{"name": "A", "office": "tempe", "email": "nope"}, 400, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, data := api.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, errorCode(t, data))
		})
	}
}

func TestAPI_QueueToPrize(t *testing.T) {
	api := newAPI(t)
	x := api.register("X", "tempe", "")
	y := api.register("Y", "tempe", "")

	status, data := api.do(http.MethodPost, "/api/queue/join", map[string]string{"player_id": x.ID.String()})
	require.Equal(t, http.StatusCreated, status, string(data))
	first := decode[map[string]json.RawMessage](t, data)
	assert.NotContains(t, first, "match")

	status, data = api.do(http.MethodPost, "/api/queue/join", map[string]string{"player_id": x.ID.String()})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ALREADY_QUEUED", errorCode(t, data))

	status, data = api.do(http.MethodGet, "/api/queue/tempe", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]domain.QueueEntryDetail](t, data), 1)

	status, data = api.do(http.MethodPost, "/api/queue/join", map[string]string{"player_id": y.ID.String()})
	require.Equal(t, http.StatusCreated, status)
	joined := decode[struct {
		Match *domain.Match `json:"match"`
	}](t, data)
	require.NotNil(t, joined.Match)
	matchID := joined.Match.ID.String()

	status, data = api.do(http.MethodGet, "/api/matches/pending", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]domain.MatchDetail](t, data), 1)

	status, data = api.do(http.MethodPost, "/api/matches/"+matchID+"/report", map[string]string{"winner_id": x.ID.String()})
	require.Equal(t, http.StatusOK, status, string(data))
	report := decode[struct {
		Match *domain.Match       `json:"match"`
		Prize *domain.Eligibility `json:"prize"`
	}](t, data)
	assert.Equal(t, domain.MatchCompleted, report.Match.Status)
	require.NotNil(t, report.Prize)
	assert.False(t, report.Prize.Eligible)
	assert.Equal(t, 1, report.Prize.Wins)

	status, data = api.do(http.MethodPost, "/api/matches/"+matchID+"/report", map[string]string{"winner_id": y.ID.String()})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "MATCH_NOT_PENDING", errorCode(t, data))

	status, data = api.do(http.MethodGet, "/api/leaderboard?office=tempe", nil)
	require.Equal(t, http.StatusOK, status)
	board := decode[[]domain.LeaderboardEntry](t, data)
	require.Len(t, board, 2)
	assert.Equal(t, "X", board[0].Name)
	assert.Equal(t, 100.0, board[0].WinRate)

	status, data = api.do(http.MethodGet, "/api/matches/stats/"+x.ID.String(), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, decode[domain.WeeklyStats](t, data).Wins)

	status, data = api.do(http.MethodGet, "/api/matches/recent?limit=5", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]domain.MatchDetail](t, data), 1)

	status, data = api.do(http.MethodGet, "/api/matches/player/"+y.ID.String(), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]domain.MatchDetail](t, data), 1)

	status, data = api.do(http.MethodGet, "/api/players/"+x.ID.String()+"/prizes", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "[]\n", string(data))
}

func TestAPI_MatchErrors(t *testing.T) {
	api := newAPI(t)
	a := api.register("A", "tempe", "")
	b := api.register("B", "chicago", "")

	status, data := api.do(http.MethodPost, "/api/matches", map[string]string{"player1_id": a.ID.String(), "player2_id": a.ID.String()})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "SAME_PLAYER", errorCode(t, data))

	status, data = api.do(http.MethodPost, "/api/matches", map[string]string{"player1_id": a.ID.String(), "player2_id": b.ID.String()})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "OFFICE_MISMATCH", errorCode(t, data))

	status, data = api.do(http.MethodPost, "/api/matches", map[string]string{"player1_id": a.ID.String()})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, data))

	status, _ = api.do(http.MethodGet, "/api/matches/recent?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do(http.MethodGet, "/api/matches/stats/"+a.ID.String()+"?week_start=03-03-2024", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	c := api.register("C", "tempe", "")
	status, data = api.do(http.MethodPost, "/api/matches", map[string]string{"player1_id": a.ID.String(), "player2_id": c.ID.String()})
	require.Equal(t, http.StatusCreated, status)
	m := decode[domain.Match](t, data)

	status, data = api.do(http.MethodPost, "/api/matches/"+m.ID.String()+"/report", map[string]string{"winner_id": b.ID.String()})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_WINNER", errorCode(t, data))

	status, data = api.do(http.MethodDelete, "/api/matches/"+m.ID.String(), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, domain.MatchCancelled, decode[domain.Match](t, data).Status)

	status, data = api.do(http.MethodDelete, "/api/matches/"+m.ID.String(), nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "MATCH_NOT_PENDING", errorCode(t, data))
}

func TestAPI_Reconcile(t *testing.T) {
	api := newAPI(t)

	status, data := api.do(http.MethodPost, "/api/prizes/reconcile?week_start=2024-03-06", nil)
	require.Equal(t, http.StatusOK, status)
	res := decode[map[string]interface{}](t, data)
	assert.Equal(t, "2024-03-03T00:00:00Z", res["week_start"])
	assert.Equal(t, 0.0, res["evaluated"])

	status, _ = api.do(http.MethodPost, "/api/prizes/reconcile?week_start=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPI_SlackCommand(t *testing.T) {
	api := newAPI(t)
	api.register("Eve", "tempe", "U01234571")

	post := func(text, user string) map[string]string {
		form := url.Values{"command": {"/mtg"}, "text": {text}, "user_id": {user}}
		req, err := http.NewRequest(http.MethodPost, api.server.URL+"/api/slack/commands", strings.NewReader(form.Encode()))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		status, data := api.send(req)
		require.Equal(t, http.StatusOK, status)
		return decode[map[string]string](t, data)
	}

	assert.Contains(t, post("", "U01234571")["text"], "Available commands")
	assert.Contains(t, post("join", "U01234571")["text"], "joined the tempe matchmaking queue")
	assert.Equal(t, "Please register first by visiting the tournament website!", post("join", "U09999999")["text"])
}

func uploadRequest(t *testing.T, url, filename, contentType string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="avatar"; filename="%s"`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestAPI_AvatarUploadServeDelete(t *testing.T) {
	api := newAPI(t)
	p := api.register("Pic", "tempe", "")
	avatarURL := api.server.URL + "/api/players/" + p.ID.String() + "/avatar"

	status, data := api.send(uploadRequest(t, avatarURL, "me.png", "image/png", []byte("png-bytes")))
	require.Equal(t, http.StatusOK, status, string(data))
	ref := decode[map[string]string](t, data)["avatar_url"]
	require.True(t, strings.HasPrefix(ref, AvatarURLPrefix+"/"))

	resp, err := api.server.Client().Get(api.server.URL + ref)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "png-bytes", string(body))
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	status, data = api.send(uploadRequest(t, avatarURL, "notes.txt", "text/plain", []byte("hi")))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, data))

	status, data = api.send(uploadRequest(t, avatarURL, "big.png", "image/png", bytes.Repeat([]byte("x"), 2048)))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, data))

	status, _ = api.do(http.MethodDelete, "/api/players/"+p.ID.String()+"/avatar", nil)
	require.Equal(t, http.StatusOK, status)

	resp, err = api.server.Client().Get(api.server.URL + ref)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
