package control

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/jobtrace/internal/engine"
	"github.com/bdougie/jobtrace/internal/models"
)

func newTestServer(t *testing.T) (*httptest.Server, *fakeController, *Hub) {
	t.Helper()
	eng := &fakeController{count: 2}
	d, _ := runDispatcher(t, eng)
	hub := NewHub()
	srv := httptest.NewServer(NewServer(d, eng, hub, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, eng, hub
}

func postCommand(t *testing.T, srv *httptest.Server, name string) (int, Result) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/commands/"+name, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	var res Result
	if resp.StatusCode != http.StatusNotFound {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	}
	return resp.StatusCode, res
}

func TestServer_Commands(t *testing.T) {
	srv, _, _ := newTestServer(t)

	code, res := postCommand(t, srv, "start")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, res.Applied)
	assert.Equal(t, models.StateCapturing, res.State)

	code, res = postCommand(t, srv, "s")
	assert.Equal(t, http.StatusConflict, code)
	assert.False(t, res.Applied)

	code, res = postCommand(t, srv, "analyze")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, res.Count)

	code, _ = postCommand(t, srv, "levitate")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServer_ResultJSONUsesStateNames(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/commands/start", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	var raw map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.Equal(t, "CAPTURING", raw["state"])
	assert.Equal(t, "start", raw["command"])
}

func TestServer_State(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var raw map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.Equal(t, "WAITING", raw["state"])
	assert.Equal(t, float64(3), raw["buffered"])
	assert.Equal(t, float64(120), raw["capacity"])
}

func TestServer_CommandsNeedPost(t *testing.T) {
	srv, eng, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/commands/start")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Empty(t, eng.history())
}

func TestServer_EventsStream(t *testing.T) {
	srv, _, hub := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, EventState, ev.Type)
	assert.Equal(t, "WAITING", ev.To)

	// The subscription is registered before the initial event is written.
	require.Equal(t, 1, hub.Len())
	hub.Publish(Event{Type: EventAnalysisComplete, Count: 5})

	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, EventAnalysisComplete, ev.Type)
	assert.Equal(t, 5, ev.Count)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
}

var _ Controller = (*engine.Engine)(nil)
