package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"echopath/internal/logger"
	"echopath/internal/models"
	"echopath/internal/repository/sqlite"
	"echopath/internal/services"
	"echopath/internal/services/websocket"

	gorilla "github.com/gorilla/websocket"
)

type fixedStatus struct{}

func (fixedStatus) Status() services.Status { return services.Status{SessionID: "s1"} }

func newServer(t *testing.T, token string) (*httptest.Server, *websocket.HubService) {
	t.Helper()
	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to open journal: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	hub := websocket.NewHubService(logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	handler := SetupRoutes(Deps{
		Status:      fixedStatus{},
		Hub:         hub,
		Journal:     db,
		SnapshotDir: t.TempDir(),
		Token:       token,
	}, logger.Discard())

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, hub
}

func TestSetupRoutes_Endpoints(t *testing.T) {
	srv, _ := newServer(t, "")

	tests := []struct {
		path string
		want int
	}{
		{"/api/status", http.StatusOK},
		{"/api/announcements", http.StatusOK},
		{"/api/announcements/stats", http.StatusOK},
		{"/api/snapshots", http.StatusOK},
		{"/api/snapshots/view?name=none.jpg", http.StatusNotFound},
		{"/logs/info", http.StatusNotFound}, // no log directory
		{"/login", http.StatusNotFound},
	}
	for _, tt := range tests {
		resp, err := http.Get(srv.URL + tt.path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", tt.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.want {
			t.Errorf("GET %s: expected %d, got %d", tt.path, tt.want, resp.StatusCode)
		}
	}
}

func TestSetupRoutes_TokenRequired(t *testing.T) {
	srv, _ := newServer(t, "s3cret")

	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/status", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 with token, got %d", resp.StatusCode)
	}
}

func TestSetupRoutes_Feed(t *testing.T) {
	srv, hub := newServer(t, "s3cret")

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/feed?token=s3cret"
	client, _, err := gorilla.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.GetClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Feed client was never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Publish(context.Background(), models.Announcement{ID: "a1", Message: "A dog is nearby."})

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if !strings.Contains(string(data), "A dog is nearby.") {
		t.Errorf("Unexpected feed message %s", data)
	}
}
