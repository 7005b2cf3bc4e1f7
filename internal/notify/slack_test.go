package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/database"
)

func testAlert() *database.Alert {
	return &database.Alert{
		UUID:           "alert-1",
		RuleName:       "high-temp",
		DeviceID:       "dev-1",
		MetricName:     "temperature",
		Level:          database.LevelCritical,
		CurrentValue:   "92.5",
		ThresholdValue: "80",
		Message:        "high-temp: temperature > 80 (current: 92.5) on device dev-1",
		TriggeredAt:    time.Now().UTC(),
	}
}

func TestDispatchPostsToConfiguredChannels(t *testing.T) {
	var received []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received = body
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := NewDispatcher(map[string]string{"ops": server.URL})
	d.Dispatch(database.StringList{"ops"}, testAlert())

	if received == nil {
		t.Fatal("expected a webhook POST")
	}

	var msg struct {
		Attachments []struct {
			Color  string `json:"color"`
			Title  string `json:"title"`
			Fields []struct {
				Title string `json:"title"`
				Value string `json:"value"`
			} `json:"fields"`
		} `json:"attachments"`
	}
	if err := json.Unmarshal(received, &msg); err != nil {
		t.Fatalf("bad webhook payload: %v", err)
	}
	if len(msg.Attachments) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(msg.Attachments))
	}
	att := msg.Attachments[0]
	if att.Title != "Alert: high-temp" {
		t.Errorf("title = %s", att.Title)
	}
	if att.Color != "#FF0000" {
		t.Errorf("color = %s", att.Color)
	}

	fields := make(map[string]string)
	for _, f := range att.Fields {
		fields[f.Title] = f.Value
	}
	if fields["Device"] != "dev-1" || fields["Value"] != "92.5" || fields["Threshold"] != "80" {
		t.Errorf("fields = %v", fields)
	}
}

func TestDispatchSkipsUnknownChannels(t *testing.T) {
	posts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := NewDispatcher(map[string]string{"ops": server.URL})
	d.Dispatch(database.StringList{"unknown", "ops", "also-unknown"}, testAlert())

	if posts != 1 {
		t.Errorf("expected 1 post for the known channel, got %d", posts)
	}
}

func TestDispatchWithNilConfig(t *testing.T) {
	// No webhooks configured; nothing to deliver, no panic.
	d := NewDispatcher(nil)
	d.Dispatch(database.StringList{"ops"}, testAlert())
}

func TestLevelColor(t *testing.T) {
	tests := []struct {
		level database.AlertLevel
		want  string
	}{
		{database.LevelEmergency, "#FF0000"},
		{database.LevelCritical, "#FF0000"},
		{database.LevelError, "#FF6600"},
		{database.LevelWarning, "#FFA500"},
		{database.LevelInfo, "#0099FF"},
		{"unknown", "#808080"},
	}
	for _, tt := range tests {
		if got := levelColor(tt.level); got != tt.want {
			t.Errorf("levelColor(%s) = %s, want %s", tt.level, got, tt.want)
		}
	}
}
