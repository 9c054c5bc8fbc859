package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"focusbeat/backend/internal/ads"
	"focusbeat/backend/internal/audio"
	"focusbeat/backend/internal/clock"
	"focusbeat/backend/internal/config"
	"focusbeat/backend/internal/db"
	"focusbeat/backend/internal/handler"
	"focusbeat/backend/internal/repository"
	"focusbeat/backend/internal/router"
	"focusbeat/backend/internal/service"
	"focusbeat/backend/internal/store"
	"focusbeat/backend/internal/workspace"
)

var epoch = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type testServer struct {
	engine  http.Handler
	manager *workspace.Manager
	clock   *clock.Fake
}

type authResponse struct {
	Token   string `json:"token"`
	Profile struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"profile"`
}

type timerEnvelope struct {
	Timer struct {
		State     string `json:"state"`
		Mode      string `json:"mode"`
		ElapsedMs int64  `json:"elapsedMs"`
	} `json:"timer"`
}

type audioEnvelope struct {
	Audio struct {
		Playback    string `json:"playback"`
		IsPlaying   bool   `json:"isPlaying"`
		CurrentMood string `json:"currentMood"`
		Volume      int    `json:"volume"`
		Is8DEnabled bool   `json:"is8DEnabled"`
	} `json:"audio"`
}

type todayEnvelope struct {
	Today struct {
		SessionCount int   `json:"sessionCount"`
		TotalFocusMs int64 `json:"totalFocusMs"`
	} `json:"today"`
}

type slotEnvelope struct {
	Slot struct {
		Loaded          bool    `json:"loaded"`
		Filled          bool    `json:"filled"`
		CurrentProvider *string `json:"currentProvider"`
	} `json:"slot"`
}

type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			Timer struct {
				State string `json:"state"`
			} `json:"timer"`
		} `json:"details"`
	} `json:"error"`
}

func TestTimerSyncAndProfileIsolation(t *testing.T) {
	srv := setupTestServer(t)

	user1 := registerProfile(t, srv.engine, "Sam", "123456")
	user2 := registerProfile(t, srv.engine, "alex", "123456")
	if user1.Profile.Name != "sam" {
		t.Fatalf("expected normalized name, got %s", user1.Profile.Name)
	}

	status, _ := requestJSON(t, srv.engine, http.MethodPost, "/api/timer/start", user1.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on start, got %d", status)
	}
	srv.clock.Advance(90 * time.Second)

	var timer timerEnvelope
	status, raw := requestJSON(t, srv.engine, http.MethodGet, "/api/timer", user1.Token, nil)
	decode(t, status, raw, &timer)
	if timer.Timer.State != "running" || timer.Timer.ElapsedMs != 90_000 {
		t.Fatalf("expected running with 90s elapsed, got %+v", timer.Timer)
	}

	// Mode changes are refused while the timer runs.
	status, raw = requestJSON(t, srv.engine, http.MethodPost, "/api/timer/mode", user1.Token, map[string]string{
		"mode": "pomodoro",
	})
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for mode change while running, got %d", status)
	}
	var conflict apiErrorEnvelope
	if err := json.Unmarshal(raw, &conflict); err != nil {
		t.Fatalf("unmarshal conflict: %v", err)
	}
	if conflict.Error.Code != "timer_busy" || conflict.Error.Details.Timer.State != "running" {
		t.Fatalf("unexpected conflict body: %s", string(raw))
	}

	status, _ = requestJSON(t, srv.engine, http.MethodPost, "/api/timer/stop", user1.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on stop, got %d", status)
	}

	var today todayEnvelope
	status, raw = requestJSON(t, srv.engine, http.MethodGet, "/api/stats/today", user1.Token, nil)
	decode(t, status, raw, &today)
	if today.Today.SessionCount != 1 || today.Today.TotalFocusMs != 90_000 {
		t.Fatalf("unexpected stats for user1: %+v", today.Today)
	}

	status, raw = requestJSON(t, srv.engine, http.MethodGet, "/api/stats/today", user2.Token, nil)
	decode(t, status, raw, &today)
	if today.Today.SessionCount != 0 {
		t.Fatalf("expected no sessions for user2, got %d", today.Today.SessionCount)
	}

	status, _ = requestJSON(t, srv.engine, http.MethodGet, "/api/stats/last-session", user2.Token, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for user2 last session, got %d", status)
	}

	status, raw = requestJSON(t, srv.engine, http.MethodGet, "/api/stats?days=7", user1.Token, nil)
	var week struct {
		Stats struct {
			Days         []json.RawMessage `json:"days"`
			SessionCount int               `json:"sessionCount"`
		} `json:"stats"`
	}
	decode(t, status, raw, &week)
	if len(week.Stats.Days) != 7 || week.Stats.SessionCount != 1 {
		t.Fatalf("unexpected week: %s", string(raw))
	}

	status, _ = requestJSON(t, srv.engine, http.MethodGet, "/api/stats?days=365", user1.Token, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized range, got %d", status)
	}
}

func TestPomodoroDurations(t *testing.T) {
	srv := setupTestServer(t)
	user := registerProfile(t, srv.engine, "sam", "123456")

	status, _ := requestJSON(t, srv.engine, http.MethodPost, "/api/timer/mode", user.Token, map[string]string{"mode": "pomodoro"})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on mode change, got %d", status)
	}
	status, _ = requestJSON(t, srv.engine, http.MethodPut, "/api/timer/durations", user.Token, map[string]int64{
		"workMs": 0, "breakMs": 1000,
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero work duration, got %d", status)
	}
	status, _ = requestJSON(t, srv.engine, http.MethodPut, "/api/timer/durations", user.Token, map[string]int64{
		"workMs": 60_000, "breakMs": 30_000,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on durations, got %d", status)
	}

	requestJSON(t, srv.engine, http.MethodPost, "/api/timer/start", user.Token, nil)
	srv.clock.Advance(time.Minute)

	var timer timerEnvelope
	status, raw := requestJSON(t, srv.engine, http.MethodGet, "/api/timer", user.Token, nil)
	decode(t, status, raw, &timer)
	if timer.Timer.State != "finished" {
		t.Fatalf("expected finished work phase, got %s", timer.Timer.State)
	}

	status, _ = requestJSON(t, srv.engine, http.MethodPost, "/api/timer/mode", user.Token, map[string]string{"mode": "countdown"})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown mode, got %d", status)
	}
}

func TestAudioPreferencesSurviveLogout(t *testing.T) {
	srv := setupTestServer(t)
	user := registerProfile(t, srv.engine, "sam", "123456")

	var state audioEnvelope
	status, raw := requestJSON(t, srv.engine, http.MethodPut, "/api/audio/mood", user.Token, map[string]string{"mood": "sad"})
	decode(t, status, raw, &state)
	if state.Audio.CurrentMood != "sad" {
		t.Fatalf("expected sad mood, got %s", state.Audio.CurrentMood)
	}

	status, raw = requestJSON(t, srv.engine, http.MethodPut, "/api/audio/volume", user.Token, map[string]int{"level": 150})
	decode(t, status, raw, &state)
	if state.Audio.Volume != 100 {
		t.Fatalf("expected clamped volume 100, got %d", state.Audio.Volume)
	}

	status, raw = requestJSON(t, srv.engine, http.MethodPost, "/api/audio/play", user.Token, nil)
	decode(t, status, raw, &state)
	if !state.Audio.IsPlaying {
		t.Fatalf("expected playing, got %+v", state.Audio)
	}

	requestJSON(t, srv.engine, http.MethodPut, "/api/audio/8d", user.Token, map[string]bool{"enabled": true})

	var graph struct {
		Graph struct {
			Created  bool `json:"created"`
			Topology struct {
				Spatial bool `json:"spatial"`
			} `json:"topology"`
		} `json:"graph"`
	}
	status, raw = requestJSON(t, srv.engine, http.MethodGet, "/api/audio/graph", user.Token, nil)
	decode(t, status, raw, &graph)
	if !graph.Graph.Created || !graph.Graph.Topology.Spatial {
		t.Fatalf("expected spatial graph, got %s", string(raw))
	}

	status, _ = requestJSON(t, srv.engine, http.MethodPut, "/api/audio/mood", user.Token, map[string]string{"mood": "angry"})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown mood, got %d", status)
	}
	status, _ = requestJSON(t, srv.engine, http.MethodPut, "/api/audio/volume", user.Token, map[string]string{})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing level, got %d", status)
	}

	status, _ = requestJSON(t, srv.engine, http.MethodPost, "/api/profiles/logout", user.Token, nil)
	if status != http.StatusNoContent {
		t.Fatalf("expected 204 on logout, got %d", status)
	}
	if len(srv.manager.Active()) != 0 {
		t.Fatalf("expected workspace disposed, got %v", srv.manager.Active())
	}

	again := loginProfile(t, srv.engine, "sam", "123456")
	status, raw = requestJSON(t, srv.engine, http.MethodGet, "/api/audio", again.Token, nil)
	decode(t, status, raw, &state)
	if state.Audio.CurrentMood != "sad" || state.Audio.Volume != 100 || !state.Audio.Is8DEnabled {
		t.Fatalf("preferences not restored: %+v", state.Audio)
	}
	if state.Audio.Playback != "stopped" {
		t.Fatalf("expected stopped playback after restore, got %s", state.Audio.Playback)
	}
}

func TestAdSlotsFlow(t *testing.T) {
	srv := setupTestServer(t)
	user := registerProfile(t, srv.engine, "sam", "123456")

	status, raw := requestJSON(t, srv.engine, http.MethodPost, "/api/ads/slots/sidebar/register", user.Token, map[string]string{
		"elementId": "ad-sidebar",
	})
	var registered struct {
		Registered bool `json:"registered"`
		State      struct {
			Loaded bool `json:"loaded"`
		} `json:"state"`
	}
	decode(t, status, raw, &registered)
	if !registered.Registered || registered.State.Loaded {
		t.Fatalf("expected lazy slot registered and not loaded, got %s", string(raw))
	}

	// Below the fold plus margin: no load yet.
	status, raw = requestJSON(t, srv.engine, http.MethodPost, "/api/ads/visibility", user.Token, map[string]interface{}{
		"elementId": "ad-sidebar", "top": 1200, "bottom": 1800, "viewportHeight": 900,
	})
	var visibility struct {
		Triggered bool `json:"triggered"`
	}
	decode(t, status, raw, &visibility)
	if visibility.Triggered {
		t.Fatal("expected no trigger outside the margin")
	}

	status, raw = requestJSON(t, srv.engine, http.MethodPost, "/api/ads/visibility", user.Token, map[string]interface{}{
		"elementId": "ad-sidebar", "top": 950, "bottom": 1550, "viewportHeight": 900,
	})
	decode(t, status, raw, &visibility)
	if !visibility.Triggered {
		t.Fatal("expected trigger inside the margin")
	}

	w, err := srv.manager.Get(context.Background(), user.Profile.ID)
	if err != nil {
		t.Fatalf("get workspace: %v", err)
	}
	w.Ads.Wait()

	var slot slotEnvelope
	status, raw = requestJSON(t, srv.engine, http.MethodGet, "/api/ads/slots/sidebar", user.Token, nil)
	decode(t, status, raw, &slot)
	if !slot.Slot.Filled || slot.Slot.CurrentProvider == nil || *slot.Slot.CurrentProvider != "adsterra" {
		t.Fatalf("expected adsterra fill, got %s", string(raw))
	}

	// Loading again returns the stored outcome.
	status, raw = requestJSON(t, srv.engine, http.MethodPost, "/api/ads/slots/sidebar/load", user.Token, nil)
	decode(t, status, raw, &slot)
	if !slot.Slot.Filled {
		t.Fatalf("expected stored fill, got %s", string(raw))
	}

	status, _ = requestJSON(t, srv.engine, http.MethodGet, "/api/ads/slots/unknown", user.Token, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown slot, got %d", status)
	}

	status, raw = requestJSON(t, srv.engine, http.MethodPut, "/api/ads/viewport", user.Token, map[string]int{"width": 375})
	var overview struct {
		Ads struct {
			DeviceClass   string `json:"deviceClass"`
			AdSenseActive bool   `json:"adSenseActive"`
		} `json:"ads"`
	}
	decode(t, status, raw, &overview)
	if overview.Ads.DeviceClass != "mobile" || overview.Ads.AdSenseActive {
		t.Fatalf("unexpected overview: %s", string(raw))
	}

	status, _ = requestJSON(t, srv.engine, http.MethodDelete, "/api/ads/slots/sidebar", user.Token, nil)
	if status != http.StatusNoContent {
		t.Fatalf("expected 204 on unregister, got %d", status)
	}
	status, raw = requestJSON(t, srv.engine, http.MethodGet, "/api/ads/slots/sidebar", user.Token, nil)
	decode(t, status, raw, &slot)
	if slot.Slot.Loaded {
		t.Fatalf("expected cleared slot after unregister, got %s", string(raw))
	}
}

func TestEventStream(t *testing.T) {
	srv := setupTestServer(t)
	user := registerProfile(t, srv.engine, "sam", "123456")

	w, err := srv.manager.Get(context.Background(), user.Profile.ID)
	if err != nil {
		t.Fatalf("get workspace: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events?access_token="+user.Token, nil).WithContext(ctx)
	recorder := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.engine.ServeHTTP(recorder, req)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for w.Events.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	status, _ := requestJSON(t, srv.engine, http.MethodPost, "/api/timer/start", user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on start, got %d", status)
	}
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	contentType := recorder.Header().Get("Content-Type")
	if mediaType, _, err := mime.ParseMediaType(contentType); err != nil || mediaType != "text/event-stream" {
		t.Fatalf("unexpected content type %q", contentType)
	}
	if body := recorder.Body.String(); !strings.Contains(body, "event:timer") {
		t.Fatalf("expected a timer event, got %q", body)
	}
}

func TestNotificationPermission(t *testing.T) {
	srv := setupTestServer(t)
	user := registerProfile(t, srv.engine, "sam", "123456")

	var permission struct {
		Granted bool `json:"granted"`
	}
	status, raw := requestJSON(t, srv.engine, http.MethodGet, "/api/notifications/permission", user.Token, nil)
	decode(t, status, raw, &permission)
	if permission.Granted {
		t.Fatal("expected permission denied by default")
	}

	status, raw = requestJSON(t, srv.engine, http.MethodPut, "/api/notifications/permission", user.Token, map[string]bool{"granted": true})
	decode(t, status, raw, &permission)
	if !permission.Granted {
		t.Fatal("expected permission granted")
	}
}

func TestAuthErrors(t *testing.T) {
	srv := setupTestServer(t)
	registerProfile(t, srv.engine, "sam", "123456")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   interface{}
		status int
	}{
		{name: "missing token", method: http.MethodGet, path: "/api/timer", status: http.StatusUnauthorized},
		{name: "garbage token", method: http.MethodGet, path: "/api/timer", token: "not-a-jwt", status: http.StatusUnauthorized},
		{name: "duplicate name", method: http.MethodPost, path: "/api/profiles/register", body: map[string]string{"name": " SAM ", "passphrase": "abcdef"}, status: http.StatusConflict},
		{name: "short passphrase", method: http.MethodPost, path: "/api/profiles/register", body: map[string]string{"name": "kim", "passphrase": "abc"}, status: http.StatusBadRequest},
		{name: "wrong passphrase", method: http.MethodPost, path: "/api/profiles/login", body: map[string]string{"name": "sam", "passphrase": "wrong!"}, status: http.StatusUnauthorized},
		{name: "unknown profile", method: http.MethodPost, path: "/api/profiles/login", body: map[string]string{"name": "kim", "passphrase": "123456"}, status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, raw := requestJSON(t, srv.engine, tt.method, tt.path, tt.token, tt.body)
			if status != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, status, string(raw))
			}
		})
	}

	status, raw := requestJSON(t, srv.engine, http.MethodGet, "/api/profiles", "", nil)
	var list struct {
		Profiles []struct {
			Name string `json:"name"`
		} `json:"profiles"`
	}
	decode(t, status, raw, &list)
	if len(list.Profiles) != 1 || list.Profiles[0].Name != "sam" {
		t.Fatalf("unexpected profiles: %s", string(raw))
	}
	if strings.Contains(string(raw), "hash") {
		t.Fatalf("profile list leaks passphrase hash: %s", string(raw))
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := setupTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/profiles/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	recorder := httptest.NewRecorder()

	srv.engine.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", recorder.Code)
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("unexpected allow-origin header: %s", recorder.Header().Get("Access-Control-Allow-Origin"))
	}
	if !strings.Contains(recorder.Header().Get("Access-Control-Allow-Methods"), "DELETE") {
		t.Fatalf("expected DELETE allowed, got %s", recorder.Header().Get("Access-Control-Allow-Methods"))
	}
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	_, currentFile, _, _ := runtime.Caller(0)
	migrationsDir := filepath.Join(filepath.Dir(currentFile), "..", "..", "migrations")
	if _, err := db.RunMigrations(database, migrationsDir); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	fill := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"filled":true}`))
	}))
	t.Cleanup(fill.Close)

	clk := clock.NewFake(epoch)
	manager := workspace.NewManager(workspace.Options{
		Clock:     clk,
		Store:     store.NewSQLite(database),
		Playlists: audio.DefaultCatalog(),
		Providers: ads.NewProviders(map[string]string{"adsterra": fill.URL}, "", time.Second),
		Slots:     ads.DefaultSlots(),
		Location:  time.UTC,
		Timer: config.TimerConfig{
			WorkDuration:      25 * time.Minute,
			BreakDuration:     5 * time.Minute,
			TickInterval:      time.Hour,
			CreditOfflineTime: true,
		},
		Audio: config.AudioConfig{
			PanCycle:         8 * time.Second,
			FrameInterval:    time.Hour,
			ProgressInterval: time.Hour,
		},
		Ads: config.AdsConfig{
			Page:        "home",
			Breakpoint:  1024,
			MobileLimit: 3,
			LoadTimeout: time.Second,
			RootMargin:  100,
		},
	})
	t.Cleanup(manager.CloseAll)

	profileRepo := repository.NewProfileRepository(database)
	authService := service.NewAuthService(profileRepo, manager, "test-secret", 24*time.Hour)

	handlers := router.Handlers{
		Auth:   handler.NewAuthHandler(authService),
		Timer:  handler.NewTimerHandler(service.NewTimerService(manager)),
		Stats:  handler.NewStatsHandler(service.NewStatsService(manager)),
		Audio:  handler.NewAudioHandler(service.NewAudioService(manager)),
		Ads:    handler.NewAdHandler(service.NewAdService(manager)),
		Events: handler.NewEventHandler(service.NewEventService(manager), time.Hour),
	}

	return &testServer{
		engine:  router.New(authService, handlers, []string{"http://localhost:5173"}, nil),
		manager: manager,
		clock:   clk,
	}
}

func registerProfile(t *testing.T, server http.Handler, name, passphrase string) authResponse {
	t.Helper()
	return authenticate(t, server, "/api/profiles/register", http.StatusCreated, name, passphrase)
}

func loginProfile(t *testing.T, server http.Handler, name, passphrase string) authResponse {
	t.Helper()
	return authenticate(t, server, "/api/profiles/login", http.StatusOK, name, passphrase)
}

func authenticate(t *testing.T, server http.Handler, path string, want int, name, passphrase string) authResponse {
	t.Helper()
	status, body := requestJSON(t, server, http.MethodPost, path, "", map[string]string{
		"name":       name,
		"passphrase": passphrase,
	})
	if status != want {
		t.Fatalf("%s %s failed with status %d: %s", path, name, status, string(body))
	}
	var resp authResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal auth response: %v", err)
	}
	if resp.Token == "" {
		t.Fatalf("empty token for profile %s", name)
	}
	return resp
}

func decode(t *testing.T, status int, body []byte, out interface{}) {
	t.Helper()
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
}

func requestJSON(
	t *testing.T,
	server http.Handler,
	method, path, token string,
	body interface{},
) (int, []byte) {
	t.Helper()

	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		payload = raw
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)
	return recorder.Code, recorder.Body.Bytes()
}
