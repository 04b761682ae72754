package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/studylog/core/internal/adapters/repository"
	"github.com/studylog/core/internal/domain/entities"
	"github.com/studylog/core/internal/infrastructure/config"
	"github.com/studylog/core/internal/infrastructure/logger"
	"github.com/studylog/core/internal/infrastructure/server"
	"github.com/studylog/core/internal/ports"
)

type testApp struct {
	ts  *httptest.Server
	dir string
	cfg *config.Config
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "studylog", Version: "test", Environment: "test"},
		Server: config.ServerConfig{
			Port:           3000,
			ReadTimeout:    5 * time.Second,
			WriteTimeout:   5 * time.Second,
			IdleTimeout:    5 * time.Second,
			RequestTimeout: 5 * time.Second,
		},
		Store: config.StoreConfig{
			DataDir:           dir,
			DefaultCollection: "data.json",
			Exclude:           []string{"package.json", "package-lock.json"},
		},
		Session: config.SessionConfig{
			Secret:     "test-secret",
			CookieName: "studylog_session",
			MaxAge:     time.Hour,
			Backend:    config.SessionBackendMemory,
		},
		Security: config.SecurityConfig{
			CORSAllowedOrigins: "*",
			RateLimitRequests:  10000,
			RateLimitWindow:    time.Second,
		},
		Metrics: config.MetricsConfig{Enabled: true},
	}
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	dir := t.TempDir()
	cfg := testConfig(dir)
	// websocket goroutines may outlive the test, so no zaptest here
	log := logger.NewNop()

	store := repository.NewCollectionRepository(dir, cfg.Store.Exclude, log)
	srv, err := server.New(cfg, store, repository.NewMemorySelectionRepository(), log)
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return &testApp{ts: ts, dir: dir, cfg: cfg}
}

// client is one browser: it keeps its own cookie jar
type client struct {
	t    *testing.T
	app  *testApp
	http *http.Client
}

func (a *testApp) newClient(t *testing.T) *client {
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &client{t: t, app: a, http: &http.Client{Jar: jar}}
}

func (c *client) doRaw(method, path, contentType string, body io.Reader, expectedStatus int) []byte {
	c.t.Helper()
	req, err := http.NewRequest(method, c.app.ts.URL+path, body)
	if err != nil {
		c.t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatal(err)
	}
	if resp.StatusCode != expectedStatus {
		c.t.Fatalf("%s %s: status %d, want %d, body %s", method, path, resp.StatusCode, expectedStatus, data)
	}
	return data
}

func doJSON[T any](c *client, method, path string, payload any, expectedStatus int) T {
	c.t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			c.t.Fatal(err)
		}
		body = bytes.NewReader(raw)
	}
	var value T
	data := c.doRaw(method, path, "application/json", body, expectedStatus)
	if err := json.Unmarshal(data, &value); err != nil {
		c.t.Fatalf("decode %s response %q: %v", path, data, err)
	}
	return value
}

type errorBody struct {
	Error string `json:"error"`
}

func TestSubmitAndStatsExample(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient(t)

	page := string(c.doRaw(http.MethodGet, "/", "", nil, http.StatusOK))
	if !strings.Contains(page, "Study Time Tracker") || !strings.Contains(page, "data.json") {
		t.Fatalf("index page missing content: %.200s", page)
	}
	if strings.Contains(page, "0.0%") || !strings.Contains(page, "<td>0%</td>") {
		t.Error("empty database should show percentages as 0%")
	}

	submitted := doJSON[ports.SubmitEntryResponse](c, http.MethodPost, "/submit",
		map[string]any{"date": "2024-01-01", "textbook": 30, "podcast": 10}, http.StatusOK)
	if submitted.Message != "Study time recorded successfully!" {
		t.Errorf("message = %q", submitted.Message)
	}
	if submitted.Entry == nil || submitted.Entry.Textbook != 30 || submitted.Entry.Timestamp.IsZero() {
		t.Fatalf("entry = %+v", submitted.Entry)
	}

	data := doJSON[entities.Collection](c, http.MethodGet, "/api/data", nil, http.StatusOK)
	if len(data.Entries) != 1 || data.Entries[0].Date != "2024-01-01" {
		t.Fatalf("data = %+v", data)
	}

	stats := doJSON[ports.StatsResponse](c, http.MethodGet, "/api/stats", nil, http.StatusOK)
	if stats.Stats.GrandTotal != 40 {
		t.Errorf("grandTotal = %d, want 40", stats.Stats.GrandTotal)
	}
	if stats.Stats.Percentages[entities.CategoryTextbook] != 75.0 || stats.Stats.Percentages[entities.CategoryPodcast] != 25.0 {
		t.Errorf("percentages = %v", stats.Stats.Percentages)
	}

	page = string(c.doRaw(http.MethodGet, "/", "", nil, http.StatusOK))
	if !strings.Contains(page, "75.0%") {
		t.Error("page does not show the textbook percentage")
	}

	raw, err := os.ReadFile(filepath.Join(app.dir, "data.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"textbook": 30`) {
		t.Errorf("file content = %s", raw)
	}
}

func TestSubmitCoercionAndValidation(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient(t)

	coerced := doJSON[ports.SubmitEntryResponse](c, http.MethodPost, "/submit",
		map[string]any{"date": "2024-01-02", "textbook": "abc", "lecture": "12.9", "notes": -5, "practice": nil}, http.StatusOK)
	e := coerced.Entry
	if e.Textbook != 0 || e.Lecture != 12 || e.Notes != 0 || e.Practice != 0 {
		t.Errorf("coerced entry = %+v", e.Tally)
	}

	missing := doJSON[errorBody](c, http.MethodPost, "/submit", map[string]any{"textbook": 5}, http.StatusBadRequest)
	if missing.Error != "Date is required" {
		t.Errorf("error = %q", missing.Error)
	}

	form := url.Values{"date": {"2024-01-03"}, "inperson": {"45"}, "podcast": {"x"}}
	c.doRaw(http.MethodPost, "/submit", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), http.StatusOK)

	data := doJSON[entities.Collection](c, http.MethodGet, "/api/data", nil, http.StatusOK)
	if len(data.Entries) != 2 || data.Entries[1].InPerson != 45 || data.Entries[1].Podcast != 0 {
		t.Errorf("entries = %+v", data.Entries)
	}
}

func TestDatabaseLifecycle(t *testing.T) {
	app := newTestApp(t)
	alice := app.newClient(t)
	bob := app.newClient(t)

	for _, name := range []string{"../escape", "a b", "", "x/y"} {
		doJSON[errorBody](alice, http.MethodPost, "/api/create-db", map[string]string{"name": name}, http.StatusBadRequest)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(app.dir), "escape.json")); !os.IsNotExist(err) {
		t.Fatalf("path traversal created a file: %v", err)
	}

	created := doJSON[ports.CreateCollectionResponse](alice, http.MethodPost, "/api/create-db", map[string]string{"name": "midterm2"}, http.StatusOK)
	if created.Database != "midterm2.json" {
		t.Fatalf("created = %+v", created)
	}
	doJSON[errorBody](alice, http.MethodPost, "/api/create-db", map[string]string{"name": "midterm2.json"}, http.StatusBadRequest)

	list := doJSON[ports.CollectionsResponse](alice, http.MethodGet, "/api/databases", nil, http.StatusOK)
	if list.Current != "midterm2.json" || len(list.Databases) != 2 {
		t.Fatalf("alice databases = %+v", list)
	}
	if got := doJSON[ports.CollectionsResponse](bob, http.MethodGet, "/api/databases", nil, http.StatusOK); got.Current != "data.json" {
		t.Errorf("bob current = %q, want data.json", got.Current)
	}

	doJSON[errorBody](bob, http.MethodPost, "/api/switch-db", map[string]string{"database": "nope.json"}, http.StatusNotFound)
	doJSON[errorBody](bob, http.MethodPost, "/api/switch-db", map[string]string{"database": "midterm2"}, http.StatusBadRequest)
	doJSON[errorBody](bob, http.MethodPost, "/api/switch-db", map[string]string{"database": "../data.json"}, http.StatusBadRequest)
	doJSON[map[string]string](bob, http.MethodPost, "/api/switch-db", map[string]string{"database": "midterm2.json"}, http.StatusOK)

	doJSON[ports.SubmitEntryResponse](bob, http.MethodPost, "/submit", map[string]any{"date": "2024-05-01", "flashcards": 20}, http.StatusOK)
	if got := doJSON[entities.Collection](alice, http.MethodGet, "/api/data", nil, http.StatusOK); len(got.Entries) != 1 {
		t.Errorf("alice sees %d entries in the shared database, want 1", len(got.Entries))
	}

	doJSON[errorBody](alice, http.MethodPost, "/api/delete-db", map[string]string{"database": "missing.json"}, http.StatusNotFound)
	doJSON[map[string]string](alice, http.MethodPost, "/api/delete-db", map[string]string{"database": "midterm2.json"}, http.StatusOK)

	for name, c := range map[string]*client{"alice": alice, "bob": bob} {
		got := doJSON[ports.CollectionsResponse](c, http.MethodGet, "/api/databases", nil, http.StatusOK)
		if got.Current != "data.json" {
			t.Errorf("%s current after delete = %q, want data.json", name, got.Current)
		}
	}
	if _, err := os.Stat(filepath.Join(app.dir, "midterm2.json")); !os.IsNotExist(err) {
		t.Errorf("deleted database recreated: %v", err)
	}

	last := doJSON[errorBody](alice, http.MethodPost, "/api/delete-db", map[string]string{"database": "data.json"}, http.StatusBadRequest)
	if last.Error == "" {
		t.Error("deleting the last database returned no error message")
	}
}

func TestTamperedCookieGetsNewSession(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient(t)
	doJSON[ports.CreateCollectionResponse](c, http.MethodPost, "/api/create-db", map[string]string{"name": "private"}, http.StatusOK)

	u, _ := url.Parse(app.ts.URL)
	cookies := c.http.Jar.Cookies(u)
	if len(cookies) != 1 {
		t.Fatalf("cookies = %v", cookies)
	}
	forged := *cookies[0]
	forged.Value = cookies[0].Value + "x"
	c.http.Jar.SetCookies(u, []*http.Cookie{&forged})

	got := doJSON[ports.CollectionsResponse](c, http.MethodGet, "/api/databases", nil, http.StatusOK)
	if got.Current != "data.json" {
		t.Errorf("tampered session kept selection %q", got.Current)
	}
	if fresh := c.http.Jar.Cookies(u); len(fresh) != 1 || fresh[0].Value == forged.Value {
		t.Error("no replacement cookie issued")
	}
}

func TestCorruptDatabaseBanner(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient(t)
	if err := os.WriteFile(filepath.Join(app.dir, "data.json"), []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	page := string(c.doRaw(http.MethodGet, "/", "", nil, http.StatusOK))
	if !strings.Contains(page, ".corrupt") {
		t.Error("page shows no corruption warning")
	}
	data := doJSON[entities.Collection](c, http.MethodGet, "/api/data", nil, http.StatusOK)
	if len(data.Entries) != 0 {
		t.Errorf("corrupt database returned %d entries", len(data.Entries))
	}
	if _, err := os.Stat(filepath.Join(app.dir, "data.json.corrupt")); err != nil {
		t.Errorf("no backup: %v", err)
	}
}

func TestOperationalEndpoints(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient(t)

	doJSON[map[string]string](c, http.MethodGet, "/health", nil, http.StatusOK)
	ready := doJSON[map[string]string](c, http.MethodGet, "/ready", nil, http.StatusOK)
	if ready["status"] != "ready" {
		t.Errorf("ready = %v", ready)
	}

	doJSON[ports.SubmitEntryResponse](c, http.MethodPost, "/submit", map[string]any{"date": "2024-01-01", "lecture": 50}, http.StatusOK)
	metrics := string(c.doRaw(http.MethodGet, "/metrics", "", nil, http.StatusOK))
	if !strings.Contains(metrics, `studylog_entries_submitted_total{database="data.json"} 1`) {
		t.Error("metrics missing submitted entry counter")
	}

	notFound := doJSON[errorBody](c, http.MethodGet, "/nope", nil, http.StatusNotFound)
	if notFound.Error == "" {
		t.Error("404 body has no error field")
	}

	css := string(c.doRaw(http.MethodGet, "/static/style.css", "", nil, http.StatusOK))
	if !strings.Contains(css, ".container") {
		t.Error("static css not served")
	}
}

func TestLiveUpdates(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient(t)
	c.doRaw(http.MethodGet, "/", "", nil, http.StatusOK)

	u, _ := url.Parse(app.ts.URL)
	header := http.Header{}
	for _, cookie := range c.http.Jar.Cookies(u) {
		header.Add("Cookie", cookie.String())
	}
	wsURL := "ws" + strings.TrimPrefix(app.ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer resp.Body.Close()
	defer conn.Close()

	events := make(chan entities.CollectionEvent, 1)
	go func() {
		conn.SetReadDeadline(time.Now().Add(10 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			close(events)
			return
		}
		var event entities.CollectionEvent
		if json.Unmarshal(msg, &event) == nil {
			events <- event
		}
		close(events)
	}()

	// registration is asynchronous, so submit until an event arrives
	for attempt := 0; attempt < 40; attempt++ {
		doJSON[ports.SubmitEntryResponse](c, http.MethodPost, "/submit", map[string]any{"date": "2024-01-01", "notes": 5}, http.StatusOK)

		select {
		case event, ok := <-events:
			if !ok {
				t.Fatal("websocket closed without a valid event")
			}
			if event.Type != entities.EventCollectionUpdated || event.Database != "data.json" || event.Entry == nil {
				t.Errorf("event = %+v", event)
			}
			return
		case <-time.After(250 * time.Millisecond):
		}
	}
	t.Fatal("no live update received")
}
