package templateclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/domain"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/secret"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/templateclient"
)

// fakeBackend is an in-memory template backend speaking the envelope format.
type fakeBackend struct {
	mu        sync.Mutex
	templates map[string]json.RawMessage
	auth      []string
	next      int
}

func (b *fakeBackend) reply(w http.ResponseWriter, status int, data any, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	env := map[string]any{"success": code == ""}
	if data != nil {
		env["data"] = data
	}
	if code != "" {
		env["errorCode"] = code
		env["message"] = msg
	}
	json.NewEncoder(w).Encode(env)
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.auth = append(b.auth, r.Header.Get("Authorization"))

	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/api/templates"), "/")
	switch {
	case r.Method == http.MethodGet && id == "":
		list := []json.RawMessage{}
		for _, t := range b.templates {
			list = append(list, t)
		}
		b.reply(w, 200, list, "", "")
	case r.Method == http.MethodGet:
		t, ok := b.templates[id]
		if !ok {
			b.reply(w, 404, nil, "not_found", "template "+id+" not found")
			return
		}
		b.reply(w, 200, t, "", "")
	case r.Method == http.MethodPost:
		body, _ := io.ReadAll(r.Body)
		var m map[string]any
		json.Unmarshal(body, &m)
		b.next++
		m["id"] = "srv_" + string(rune('0'+b.next))
		m["created_at"] = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		out, _ := json.Marshal(m)
		b.templates[m["id"].(string)] = out
		b.reply(w, 201, json.RawMessage(out), "", "")
	case r.Method == http.MethodPut:
		if _, ok := b.templates[id]; !ok {
			b.reply(w, 404, nil, "not_found", "gone")
			return
		}
		body, _ := io.ReadAll(r.Body)
		b.templates[id] = body
		b.reply(w, 200, json.RawMessage(body), "", "")
	case r.Method == http.MethodDelete:
		delete(b.templates, id)
		b.reply(w, 200, nil, "", "")
	}
}

func newClient(t *testing.T, h http.Handler, opts ...templateclient.Option) *templateclient.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := templateclient.New(srv.URL+"/api/", 5*time.Second, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestClient_RoundTrip(t *testing.T) {
	backend := &fakeBackend{templates: map[string]json.RawMessage{}}
	tokens := secret.NewMemoryStore()
	tokens.Set(secret.BackendTokenKey, []byte("s3cret\n"))
	c := newClient(t, backend, templateclient.WithTokenSource(secret.NewTokenProvider(tokens)))
	ctx := context.Background()

	tpl := &domain.Template{
		Name: "Card",
		PageConfig: domain.PageConfig{
			Elements: []domain.TemplateElement{{
				ID: "elem_000", Type: domain.ElementEmbed, ElementMode: domain.ElementModeDynamic,
				Tokens: []string{"vid"}, Payload: domain.EmbedPayload{URL: "https://v.test/{{vid}}"},
			}},
			TokenDefinitions: map[string]domain.TokenDefinition{"vid": {Type: domain.TokenTypeString, Label: "Vid"}},
		},
	}
	if err := c.Create(ctx, tpl); err != nil {
		t.Fatal(err)
	}
	if tpl.ID != "srv_1" || tpl.CreatedAt.Year() != 2026 {
		t.Fatalf("server fields not merged: %+v", tpl)
	}

	got, err := c.Get(ctx, "srv_1")
	if err != nil {
		t.Fatal(err)
	}
	embed, ok := got.PageConfig.Elements[0].Payload.(domain.EmbedPayload)
	if !ok || embed.URL != "https://v.test/{{vid}}" {
		t.Errorf("payload = %#v", got.PageConfig.Elements[0].Payload)
	}

	got.Name = "Card v2"
	if err := c.Update(ctx, got); err != nil {
		t.Fatal(err)
	}
	list, err := c.List(ctx)
	if err != nil || len(list) != 1 || list[0].Name != "Card v2" {
		t.Fatalf("list = %+v, %v", list, err)
	}
	if err := c.Delete(ctx, "srv_1"); err != nil {
		t.Fatal(err)
	}

	for _, h := range backend.auth {
		if h != "Bearer s3cret" {
			t.Errorf("authorization = %q", h)
		}
	}
}

func TestClient_StructuredFailure(t *testing.T) {
	backend := &fakeBackend{templates: map[string]json.RawMessage{}}
	c := newClient(t, backend)

	_, err := c.Get(context.Background(), "missing")
	var se *domain.StoreError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want StoreError", err)
	}
	if se.Code != "not_found" || !strings.Contains(se.Message, "missing") {
		t.Errorf("store error = %+v", se)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		t.Error("not_found should match ErrNotFound")
	}
	if len(backend.auth) != 1 || backend.auth[0] != "" {
		t.Errorf("no token configured, got auth %q", backend.auth)
	}
}

func TestClient_NonJSONReply(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "<html>bad gateway</html>")
	}))
	_, err := c.List(context.Background())
	var se *domain.StoreError
	if !errors.As(err, &se) || se.Code != domain.StoreCodeBackend {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(se.Message, "502") {
		t.Errorf("message = %q", se.Message)
	}
}

func TestClient_StatusWithoutCode(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"success":false}`)
	}))
	err := c.Delete(context.Background(), "x")
	var se *domain.StoreError
	if !errors.As(err, &se) || se.Code != domain.StoreCodeInvalid {
		t.Fatalf("err = %#v", err)
	}
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	backend := &fakeBackend{templates: map[string]json.RawMessage{}}
	c := newClient(t, backend, templateclient.WithRateLimit(0.001))
	ctx := context.Background()
	if _, err := c.List(ctx); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := c.List(ctx); err == nil {
		t.Fatal("second call should be throttled past the deadline")
	}
}

func TestNew_RejectsBadScheme(t *testing.T) {
	if _, err := templateclient.New("ftp://x", time.Second); err == nil {
		t.Fatal("expected error")
	}
}
