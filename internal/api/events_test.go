package api

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dirsweep/internal/cleanup"
	"dirsweep/internal/database"
	"dirsweep/internal/deltree"
)

func TestEventFromResult(t *testing.T) {
	e := EventFromResult(cleanup.Result{
		Target:   "/srv/scratch",
		Action:   database.ActionError,
		Counters: deltree.Counters{},
		Duration: 1500 * time.Millisecond,
		Err:      &deltree.PathError{Op: "remove", Path: "/srv/scratch/x", Kind: deltree.ErrAccessDenied, Err: errors.New("EACCES")},
	})

	assert.Equal(t, "sweep", e.Type)
	assert.Equal(t, "/srv/scratch", e.Path)
	assert.Equal(t, int64(1500), e.DurationMS)
	assert.Equal(t, "access_denied", e.ErrorKind)
	assert.Contains(t, e.Error, "/srv/scratch/x")
}

func TestEventStream(t *testing.T) {
	s := NewServer(Options{})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.Hub().ClientCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	s.Hub().PublishResult(cleanup.Result{
		Target:   "/srv/scratch",
		Action:   database.ActionDelete,
		Counters: deltree.Counters{Directories: 1, Files: 2, Bytes: 3},
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var e Event
	require.NoError(t, json.Unmarshal(data, &e))
	assert.Equal(t, "/srv/scratch", e.Path)
	assert.Equal(t, database.ActionDelete, e.Action)
	assert.Equal(t, int64(2), e.Files)

	// Closing the hub disconnects the client
	s.Hub().Close()
	assert.Zero(t, s.Hub().ClientCount())
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}
