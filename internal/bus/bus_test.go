package bus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBusServer(t *testing.T, handler func(*mux.Router)) *httptest.Server {
	t.Helper()
	router := mux.NewRouter()
	handler(router)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func TestAddEventPostsPrompt(t *testing.T) {
	var got Event
	server := newBusServer(t, func(router *mux.Router) {
		router.HandleFunc("/api/context-bus/add", func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			json.NewEncoder(w).Encode(map[string]any{"success": true})
		}).Methods(http.MethodPost)
	})

	client := NewClient(server.URL+"/api/context-bus", server.Client())
	require.NoError(t, client.AddEvent(context.Background(), "pothole on 5th avenue"))

	assert.Equal(t, "pothole on 5th avenue", got.Prompt)
	assert.True(t, got.ShouldFilter)
}

func TestAddEventServerError(t *testing.T) {
	server := newBusServer(t, func(router *mux.Router) {
		router.HandleFunc("/api/context-bus/add", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"stream unavailable"}`, http.StatusInternalServerError)
		}).Methods(http.MethodPost)
	})

	client := NewClient(server.URL+"/api/context-bus", server.Client())
	err := client.AddEvent(context.Background(), "debris in left lane")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")
}

func TestStatsDecodesResponse(t *testing.T) {
	server := newBusServer(t, func(router *mux.Router) {
		router.HandleFunc("/api/context-bus/stats", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(Stats{
				TotalEvents:    12,
				FilteredEvents: 3,
				LastEventID:    "1724900000000-0",
			})
		}).Methods(http.MethodGet)
	})

	client := NewClient(server.URL+"/api/context-bus", server.Client())
	stats, err := client.Stats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 12, stats.TotalEvents)
	assert.Equal(t, 3, stats.FilteredEvents)
	assert.Equal(t, "1724900000000-0", stats.LastEventID)
}

func TestPollerStopsOnCancel(t *testing.T) {
	var polls atomic.Int32
	server := newBusServer(t, func(router *mux.Router) {
		router.HandleFunc("/api/context-bus/stats", func(w http.ResponseWriter, r *http.Request) {
			polls.Add(1)
			json.NewEncoder(w).Encode(Stats{})
		}).Methods(http.MethodGet)
	})

	client := NewClient(server.URL+"/api/context-bus", server.Client())
	poller := NewPoller(client, nil, time.Second)
	poller.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		poller.Run(ctx)
	}()

	require.Eventually(t, func() bool { return polls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop after cancellation")
	}
}
