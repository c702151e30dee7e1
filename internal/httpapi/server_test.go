package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopfloor/shearlock/internal/httpapi"
	"github.com/shopfloor/shearlock/internal/hw"
	"github.com/shopfloor/shearlock/internal/shear/broadcast"
	"github.com/shopfloor/shearlock/internal/shear/lock"
	"github.com/shopfloor/shearlock/internal/shear/store"
	"github.com/shopfloor/shearlock/internal/shear/store/memory"
	"github.com/shopfloor/shearlock/internal/shear/types"
)

type fixture struct {
	handler http.Handler
	audit   *memory.ScanEventStore
	queue   *broadcast.Queue
	daq     *hw.SimDAQ
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := log.New(bytes.NewBuffer(nil), "", 0)

	daq := hw.NewSimDAQ()
	if err := daq.Connect(); err != nil {
		t.Fatalf("daq connect: %v", err)
	}
	audit := memory.NewScanEventStore()
	queue := broadcast.NewQueue()

	ctrl := lock.New(lock.Config{
		Outputs: daq,
		Audit:   audit,
		Queue:   queue,
		Logger:  logger,
		Settings: types.Settings{
			TimeoutSeconds: 300,
			OutputChannel:  "FIO6",
			MotionChannel:  "FIO5",
			ErrorAction:    types.ErrorActionUnlock,
		},
	})
	t.Cleanup(ctrl.Close)

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:     logger,
		Addr:       ":0",
		Controller: ctrl,
		Audit:      audit,
		Queue:      queue,
	})
	return &fixture{handler: srv.Handler(), audit: audit, queue: queue, daq: daq}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) types.Status {
	t.Helper()
	var st types.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode status: %v (%s)", err, rec.Body.String())
	}
	return st
}

func TestStatusEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	st := decodeStatus(t, rec)
	if !st.Locked {
		t.Error("fresh system must report locked")
	}
	if _, ok := st.Outputs["FIO6"]; !ok {
		t.Error("status must include output channels")
	}
}

func TestUnlockAndLock(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/unlock", `{"actor":"Ada"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unlock = %d: %s", rec.Code, rec.Body.String())
	}
	st := decodeStatus(t, rec)
	if st.Locked || st.UnlockedBy != "Ada" {
		t.Errorf("unexpected status after unlock: %+v", st)
	}
	if !f.daq.Output("FIO6") {
		t.Error("relay must be HIGH after unlock")
	}

	rec = f.do(t, http.MethodPost, "/v1/lock", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("lock = %d", rec.Code)
	}
	if st := decodeStatus(t, rec); !st.Locked {
		t.Error("expected locked after manual lock")
	}
}

func TestUnlockRejectsUnknownFields(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/unlock", `{"actor":"Ada","badge":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestEmergencyStop(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/v1/unlock", `{"actor":"Ada"}`)
	rec := f.do(t, http.MethodPost, "/v1/emergency_stop", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("emergency_stop = %d", rec.Code)
	}
	if st := decodeStatus(t, rec); !st.Locked {
		t.Error("emergency stop must lock")
	}
}

func TestEmergencyUnlockUsesErrorAction(t *testing.T) {
	f := newFixture(t)

	// Fixture error_action is unlock.
	rec := f.do(t, http.MethodPost, "/v1/emergency_unlock", `{"reason":"test"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("emergency_unlock = %d", rec.Code)
	}
	if st := decodeStatus(t, rec); st.Locked {
		t.Error("error_action=unlock must unlock")
	}
}

func TestOutputModeAndSet(t *testing.T) {
	f := newFixture(t)

	// Direct set while in auto is refused.
	rec := f.do(t, http.MethodPost, "/v1/outputs/set", `{"channel":"FIO7","level":true}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for auto-mode set, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/v1/outputs/mode", `{"channel":"FIO7","mode":"manual"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("outputs/mode = %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/v1/outputs/set", `{"channel":"FIO7","level":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("outputs/set = %d: %s", rec.Code, rec.Body.String())
	}
	if !f.daq.Output("FIO7") {
		t.Error("manual set must reach the hardware")
	}

	// Unknown channel and invalid mode.
	if rec := f.do(t, http.MethodPost, "/v1/outputs/set", `{"channel":"FIO9","level":true}`); rec.Code != http.StatusNotFound {
		t.Errorf("unknown channel = %d, want 404", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/v1/outputs/mode", `{"channel":"FIO7","mode":"sideways"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid mode = %d, want 400", rec.Code)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	f := newFixture(t)

	body := `{"timeout_seconds":60,"output_channel":"FIO7","motion_channel":"FIO4","error_action":"lock"}`
	rec := f.do(t, http.MethodPut, "/v1/settings", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("put settings = %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/v1/settings", "")
	var s types.Settings
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if s.TimeoutSeconds != 60 || s.OutputChannel != "FIO7" || s.ErrorAction != types.ErrorActionLock {
		t.Errorf("unexpected settings: %+v", s)
	}
}

func TestSettingsValidationRejected(t *testing.T) {
	f := newFixture(t)

	body := `{"timeout_seconds":2,"output_channel":"FIO6","motion_channel":"FIO5","error_action":"unlock"}`
	rec := f.do(t, http.MethodPut, "/v1/settings", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad settings, got %d", rec.Code)
	}
	var er struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &er); err != nil || er.Error != "invalid_settings" {
		t.Errorf("unexpected error body: %s", rec.Body.String())
	}
}

func TestScansEndpoint(t *testing.T) {
	f := newFixture(t)

	for _, r := range []string{store.ResultScan, store.ResultUnlock} {
		if err := f.audit.Append(context.Background(), store.ScanEventRecord{CardID: "1", Result: r}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	rec := f.do(t, http.MethodGet, "/v1/scans?limit=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("scans = %d", rec.Code)
	}
	var events []store.ScanEventRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode scans: %v", err)
	}
	if len(events) != 1 || events[0].Result != store.ResultUnlock {
		t.Errorf("expected newest event only, got %+v", events)
	}

	if rec := f.do(t, http.MethodGet, "/v1/scans?limit=zero", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit = %d, want 400", rec.Code)
	}
}

func TestEventsLongPoll(t *testing.T) {
	f := newFixture(t)

	go func() {
		time.Sleep(10 * time.Millisecond)
		f.queue.Publish(broadcast.Event{Type: broadcast.EventScan, CardID: "77"})
	}()

	rec := f.do(t, http.MethodGet, "/v1/events", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("events = %d", rec.Code)
	}
	var ev broadcast.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.Type != broadcast.EventScan || ev.CardID != "77" {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestEventsCancelledClient(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/v1/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		f.handler.ServeHTTP(rec, req)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not return after client cancellation")
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("cancelled poll = %d, want 204", rec.Code)
	}
}
