package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pkt.systems/tabstrip/core"
	"pkt.systems/tabstrip/internal/catalog"
	"pkt.systems/tabstrip/internal/identity"
	"pkt.systems/tabstrip/internal/layout"
	"pkt.systems/tabstrip/schema"
)

type apiClient struct {
	t       *testing.T
	handler http.Handler
	cookie  *http.Cookie
}

func newTestAPI(t *testing.T, cfg Config) (*Server, *apiClient) {
	t.Helper()
	hub := NewHub(0)
	svc, err := core.NewService(schema.ServiceConfig{Catalog: catalog.Default().Tabs(), DisableWatch: true}, core.ServiceDeps{
		EventSink: hub,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	srv := NewServer(cfg, svc, layout.DefaultEngine(), hub)
	return srv, &apiClient{t: t, handler: srv.Handler()}
}

func (c *apiClient) do(method, path, body string, out any) int {
	c.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	for _, cookie := range rec.Result().Cookies() {
		if cookie.MaxAge < 0 {
			c.cookie = nil
			continue
		}
		c.cookie = cookie
	}
	if out != nil && rec.Code < 300 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			c.t.Fatalf("decode %s %s: %v (%s)", method, path, err, rec.Body.String())
		}
	}
	return rec.Code
}

func TestTabsSignsInAnonymously(t *testing.T) {
	_, client := newTestAPI(t, Config{})
	var tabs TabsResponse
	if code := client.do(http.MethodGet, "/api/tabs", "", &tabs); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if client.cookie == nil || client.cookie.Name != defaultIdentityCookie {
		t.Fatalf("expected identity cookie")
	}
	if len(tabs.Tabs) != 14 || tabs.Layout != nil {
		t.Fatalf("expected 14 tabs without layout, got %d", len(tabs.Tabs))
	}
	var me meResponse
	client.do(http.MethodGet, "/api/me", "", &me)
	if !identity.IsAnonymous(me.Identity) || !me.Anonymous {
		t.Fatalf("expected anonymous identity, got %+v", me)
	}
	var again meResponse
	client.do(http.MethodPost, "/api/signin", "", &again)
	if again.Identity != me.Identity {
		t.Fatalf("expected signin to keep existing identity")
	}
}

func TestTabsLayoutForWidth(t *testing.T) {
	_, client := newTestAPI(t, Config{})
	var tabs TabsResponse
	client.do(http.MethodGet, "/api/tabs?width=80&location=/banking", "", &tabs)
	if tabs.Layout == nil {
		t.Fatalf("expected layout")
	}
	if len(tabs.Layout.Visible) != 4 || len(tabs.Layout.Overflow) != 10 {
		t.Fatalf("expected 4/10, got %d/%d", len(tabs.Layout.Visible), len(tabs.Layout.Overflow))
	}
	if tabs.ActiveTab != "banking" || tabs.Layout.ActiveTab != "banking" {
		t.Fatalf("expected banking active, got %q", tabs.ActiveTab)
	}
	if code := client.do(http.MethodGet, "/api/tabs?width=-1", "", nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative width, got %d", code)
	}
	for _, bad := range []string{"wide", "80px", "1e3"} {
		if code := client.do(http.MethodGet, "/api/tabs?width="+bad, "", nil); code != http.StatusBadRequest {
			t.Fatalf("expected 400 for width %q, got %d", bad, code)
		}
	}
	var bare TabsResponse
	if code := client.do(http.MethodGet, "/api/tabs?width=", "", &bare); code != http.StatusOK || bare.Layout != nil {
		t.Fatalf("expected empty width to skip layout, got %d %+v", code, bare.Layout)
	}
}

func TestPinCloseReorderReset(t *testing.T) {
	_, client := newTestAPI(t, Config{})
	var pinned MutationResponse
	if code := client.do(http.MethodPost, "/api/tabs/pin", `{"id":"statistik"}`, &pinned); code != http.StatusOK {
		t.Fatalf("pin: %d", code)
	}
	if pinned.Tab == nil || !pinned.Tab.Pinned || pinned.Tabs[1].ID != "statistik" {
		t.Fatalf("expected statistik pinned at 1, got %+v", pinned)
	}
	if code := client.do(http.MethodPost, "/api/tabs/pin", `{"id":"missing"}`, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
	var closed MutationResponse
	client.do(http.MethodPost, "/api/tabs/close", `{"id":"help"}`, &closed)
	if !closed.Changed || len(closed.Tabs) != 13 {
		t.Fatalf("expected help closed, got %+v", closed)
	}
	var noop MutationResponse
	client.do(http.MethodPost, "/api/tabs/close", `{"id":"help"}`, &noop)
	if noop.Changed {
		t.Fatalf("expected closing twice to be a no-op")
	}
	var moved MutationResponse
	client.do(http.MethodPost, "/api/tabs/reorder", `{"from":"dashboard","to":"banking"}`, &moved)
	if !moved.Changed || moved.Tabs[3].ID != "dashboard" {
		t.Fatalf("expected dashboard moved, got %+v", moved.Tabs)
	}
	var reset MutationResponse
	client.do(http.MethodPost, "/api/tabs/reset", "", &reset)
	if len(reset.Tabs) != 14 || reset.Tabs[1].ID != "dashboard" {
		t.Fatalf("expected catalog order after reset")
	}
}

func TestSelectFromOverflowRecordsLocation(t *testing.T) {
	_, client := newTestAPI(t, Config{})
	var selected MutationResponse
	if code := client.do(http.MethodPost, "/api/tabs/select", `{"id":"einkauf","from_overflow":true}`, &selected); code != http.StatusOK {
		t.Fatalf("select: %d", code)
	}
	if selected.Tabs[1].ID != "einkauf" {
		t.Fatalf("expected einkauf promoted, got %s", selected.Tabs[1].ID)
	}
	var tabs TabsResponse
	client.do(http.MethodGet, "/api/tabs", "", &tabs)
	if tabs.ActiveTab != "einkauf" {
		t.Fatalf("expected session location to mark einkauf active, got %q", tabs.ActiveTab)
	}
}

func TestRequestValidation(t *testing.T) {
	_, client := newTestAPI(t, Config{})
	if code := client.do(http.MethodGet, "/api/tabs/pin", "", nil); code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", code)
	}
	if code := client.do(http.MethodPost, "/api/tabs/pin", `{"tab":"x"}`, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", code)
	}
	if code := client.do(http.MethodPost, "/api/theme", `{"theme":"neon"}`, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown theme, got %d", code)
	}
	var me meResponse
	client.do(http.MethodPost, "/api/theme", `{"theme":"tokyo"}`, &me)
	if me.Theme != "tokyo-midnight" {
		t.Fatalf("expected tokyo-midnight, got %q", me.Theme)
	}
}

func TestSignOutStartsNewIdentity(t *testing.T) {
	_, client := newTestAPI(t, Config{})
	var first meResponse
	client.do(http.MethodGet, "/api/me", "", &first)
	if code := client.do(http.MethodPost, "/api/signout", "", nil); code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", code)
	}
	var second meResponse
	client.do(http.MethodGet, "/api/me", "", &second)
	if second.Identity == "" || second.Identity == first.Identity {
		t.Fatalf("expected a fresh identity, got %q", second.Identity)
	}
}

func TestBasePathMount(t *testing.T) {
	_, client := newTestAPI(t, Config{BasePath: "/tabs/"})
	if code := client.do(http.MethodGet, "/tabs/api/me", "", nil); code != http.StatusOK {
		t.Fatalf("expected 200 under base path, got %d", code)
	}
	if client.cookie.Path != "/tabs/" {
		t.Fatalf("expected cookie scoped to base path, got %q", client.cookie.Path)
	}
	if code := client.do(http.MethodGet, "/api/me", "", nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 outside base path, got %d", code)
	}
}

func TestStreamSendsSnapshotAndEvents(t *testing.T) {
	srv, client := newTestAPI(t, Config{})
	client.do(http.MethodGet, "/api/me", "", nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.AddCookie(client.cookie)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()
	reader := bufio.NewReader(resp.Body)

	first := readEvent(t, reader)
	if first.Type != "snapshot" || first.Snapshot == nil || len(first.Snapshot.Tabs) != 14 {
		t.Fatalf("expected snapshot first, got %+v", first)
	}
	client.do(http.MethodPost, "/api/tabs/close", `{"id":"rechn"}`, nil)
	next := readEvent(t, reader)
	if next.Type != "tabs" || next.TabEvent != string(schema.TabEventClosed) || next.TabID != "rechn" || len(next.Tabs) != 13 {
		t.Fatalf("unexpected event: %+v", next)
	}
	if next.Seq == 0 {
		t.Fatalf("expected sequence number")
	}
}

func readEvent(t *testing.T, reader *bufio.Reader) StreamEvent {
	t.Helper()
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		payload, ok := strings.CutPrefix(strings.TrimSpace(line), "data: ")
		if !ok {
			continue
		}
		var event StreamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		return event
	}
}

func TestHubReplay(t *testing.T) {
	hub := NewHub(2)
	for _, id := range []schema.TabID{"a", "b", "c"} {
		hub.OnTabEvent(schema.TabEvent{Identity: "alice", Type: schema.TabEventClosed, TabID: id})
	}
	events := hub.Replay("alice", 1)
	if len(events) != 2 || events[0].TabID != "b" || events[1].Seq != 3 {
		t.Fatalf("unexpected replay: %+v", events)
	}
	if got := hub.Replay("bob", 0); got != nil {
		t.Fatalf("expected no replay for unknown identity")
	}
	ch, unsub := hub.Subscribe("alice")
	hub.OnTabEvent(schema.TabEvent{Identity: "alice", Type: schema.TabEventReset})
	if ev := <-ch; ev.Seq != 4 || ev.TabEvent != "reset" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	unsub()
	unsub()
}
