package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/roman-kulish/groundlink/internal/link"
	"github.com/roman-kulish/groundlink/internal/telemetry"
	"github.com/roman-kulish/groundlink/internal/vehicle"
)

type fakeController struct {
	mu       sync.Mutex
	commands []vehicle.Command
	failWith error
	snapshot vehicle.Snapshot
	stateErr error

	subscribed chan chan vehicle.Event
}

func newFakeController() *fakeController {
	return &fakeController{subscribed: make(chan chan vehicle.Event, 4)}
}

func (c *fakeController) Submit(_ context.Context, cmd vehicle.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = append(c.commands, cmd)
	return c.failWith
}

func (c *fakeController) State(context.Context) (vehicle.Snapshot, error) {
	return c.snapshot, c.stateErr
}

func (c *fakeController) Subscribe(context.Context) (<-chan vehicle.Event, func()) {
	ch := make(chan vehicle.Event, 16)
	c.subscribed <- ch

	var once sync.Once
	return ch, func() { once.Do(func() { close(ch) }) }
}

func (c *fakeController) submitted() []vehicle.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]vehicle.Command(nil), c.commands...)
}

func TestServer_Health(t *testing.T) {
	srv := NewServer(newFakeController())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	if rec.Body.String() != "ok\n" {
		t.Errorf("Expected body ok, got %q", rec.Body.String())
	}
}

func TestServer_State(t *testing.T) {
	ctrl := newFakeController()
	ctrl.snapshot = vehicle.Snapshot{
		Telemetry:  telemetry.Telemetry{Latitude: 47.0, Longitude: 8.0, RelativeAltitude: 120.5, Voltage: 12000},
		LinkStatus: link.StatusUp.String(),
	}
	srv := NewServer(ctrl)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var got vehicle.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to decode state: %v", err)
	}
	if got.Latitude != 47.0 || got.RelativeAltitude != 120.5 || got.Voltage != 12000 {
		t.Errorf("Expected snapshot %+v, got %+v", ctrl.snapshot, got)
	}
	if got.LinkStatus != "up" {
		t.Errorf("Expected link status up, got %q", got.LinkStatus)
	}
}

func TestServer_StateLoopStopped(t *testing.T) {
	ctrl := newFakeController()
	ctrl.stateErr = vehicle.ErrLoopStopped

	rec := httptest.NewRecorder()
	NewServer(ctrl).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}

	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode error body: %v", err)
	}
	if body.Error != vehicle.ErrLoopStopped.Error() {
		t.Errorf("Expected %q, got %q", vehicle.ErrLoopStopped.Error(), body.Error)
	}
}

func TestServer_Commands(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		want       vehicle.Command // At is ignored
	}{
		{"axis", "/command/axis", `{"channel":"z","value":-250}`, http.StatusOK, vehicle.AxisCommand{Channel: link.ChannelZ, Value: -250}},
		{"arm", "/command/arm", `{"armed":true}`, http.StatusOK, vehicle.ArmCommand{Armed: true}},
		{"disarm", "/command/arm", `{"armed":false}`, http.StatusOK, vehicle.ArmCommand{Armed: false}},
		{"mode", "/command/mode", `{"mode":3}`, http.StatusOK, vehicle.FlightModeCommand{Mode: 3}},
		{"unknown channel", "/command/axis", `{"channel":"w","value":1}`, http.StatusBadRequest, nil},
		{"missing value", "/command/axis", `{"channel":"x"}`, http.StatusBadRequest, nil},
		{"missing armed", "/command/arm", `{}`, http.StatusBadRequest, nil},
		{"unknown field", "/command/mode", `{"mode":1,"speed":3}`, http.StatusBadRequest, nil},
		{"invalid json", "/command/mode", `{"mode":`, http.StatusBadRequest, nil},
		{"unknown command", "/command/takeoff", `{}`, http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := newFakeController()
			srv := NewServer(ctrl)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			srv.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d (%s)", tt.wantStatus, rec.Code, rec.Body.String())
			}

			got := ctrl.submitted()
			if tt.want == nil {
				if len(got) != 0 {
					t.Errorf("Expected no command, got %v", got)
				}
				return
			}
			if len(got) != 1 {
				t.Fatalf("Expected 1 command, got %d", len(got))
			}
			if stripTime(got[0]) != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got[0])
			}
			if got[0].ReceivedAt().IsZero() {
				t.Error("Expected command to carry a receive time")
			}
		})
	}
}

func TestServer_CommandErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unknown mode", fmt.Errorf("%w: 9", vehicle.ErrUnknownFlightMode), http.StatusBadRequest},
		{"not connected", fmt.Errorf("setting flight mode MANUAL: %w", link.ErrNotConnected), http.StatusServiceUnavailable},
		{"loop stopped", vehicle.ErrLoopStopped, http.StatusServiceUnavailable},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"link failure", errors.New("write: broken pipe"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := newFakeController()
			ctrl.failWith = tt.err

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/command/mode", strings.NewReader(`{"mode":1}`))
			NewServer(ctrl).Handler().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, rec.Code)
			}

			var body errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("Failed to decode error body: %v", err)
			}
			if body.Error != tt.err.Error() {
				t.Errorf("Expected error %q, got %q", tt.err.Error(), body.Error)
			}
		})
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	NewServer(newFakeController()).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/command/arm", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", rec.Code)
	}
}

func stripTime(cmd vehicle.Command) vehicle.Command {
	switch c := cmd.(type) {
	case vehicle.AxisCommand:
		return vehicle.AxisCommand{Channel: c.Channel, Value: c.Value}
	case vehicle.ArmCommand:
		return vehicle.ArmCommand{Armed: c.Armed}
	case vehicle.FlightModeCommand:
		return vehicle.FlightModeCommand{Mode: c.Mode}
	default:
		return cmd
	}
}
