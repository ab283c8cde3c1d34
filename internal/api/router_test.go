package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"

	"github.com/nikhilbhutani/livetranslate/internal/audit"
	"github.com/nikhilbhutani/livetranslate/internal/auth"
	"github.com/nikhilbhutani/livetranslate/internal/config"
	"github.com/nikhilbhutani/livetranslate/internal/models"
	"github.com/nikhilbhutani/livetranslate/internal/modelstore"
	"github.com/nikhilbhutani/livetranslate/internal/translation"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{AllowedOrigins: []string{"*"}},
		Auth:   config.AuthConfig{APIKeyHeader: "X-API-Key"},
		Translation: config.TranslationConfig{
			SourceLanguage:    "Japanese",
			TargetLanguage:    "English",
			RecognitionLocale: "ja-JP",
			DebounceDelay:     10 * time.Millisecond,
			RequestTimeout:    time.Second,
		},
		Session: config.SessionConfig{DisplayLimit: 3},
	}
}

func testModels() modelstore.Provider {
	return modelstore.NewStaticStore(
		models.ModelDescriptor{ID: "primary", Name: "Primary", Provider: models.ProviderGemini, ModelAPIName: "gemini-2.5-flash", Credential: "secret-key"},
		models.ModelDescriptor{ID: "backup", Name: "Backup", Provider: models.ProviderOpenAI, ModelAPIName: "gpt-4o-mini"},
	)
}

func stubTranslator() translation.Translator {
	return translation.NewStubTranslator(&translation.StubTranslatorConfig{
		Dictionary: map[string]map[string]string{"English": {"こんにちは": "Hello."}},
	})
}

type translatorFunc func(ctx context.Context, text, target, source string, model models.ModelDescriptor) (string, error)

func (f translatorFunc) Translate(ctx context.Context, text, target, source string, model models.ModelDescriptor) (string, error) {
	return f(ctx, text, target, source, model)
}

type fakeUsage struct {
	start, end *time.Time
}

func (f *fakeUsage) GetUsageSummary(_ context.Context, start, end *time.Time) ([]audit.UsageSummary, error) {
	f.start, f.end = start, end
	return []audit.UsageSummary{{ModelID: "primary", Provider: "gemini", Model: "gemini-2.5-flash", TotalCalls: 2}}, nil
}

func newServer(t *testing.T, deps Deps) *httptest.Server {
	t.Helper()
	if deps.Config == nil {
		deps.Config = testConfig()
	}
	if deps.Models == nil {
		deps.Models = testModels()
	}
	if deps.Translator == nil {
		deps.Translator = stubTranslator()
	}
	srv := httptest.NewServer(NewRouter(deps).Setup())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any, header http.Header) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	srv := newServer(t, Deps{Redis: rdb})

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("readyz: %v", err)
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decode(t, resp, &body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || body.Checks["redis"] != "ok" {
		t.Fatalf("readyz: expected ok, got %d %+v", resp.StatusCode, body)
	}

	mr.Close()
	resp, err = http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("readyz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("readyz with redis down: expected 503, got %d", resp.StatusCode)
	}
}

func TestListModelsRedactsCredentials(t *testing.T) {
	t.Parallel()

	srv := newServer(t, Deps{})

	resp, err := http.Get(srv.URL + "/api/v1/models")
	if err != nil {
		t.Fatalf("get models: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Models []models.ModelDescriptor `json:"models"`
		Active string                   `json:"active_model_id"`
	}
	decode(t, resp, &body)
	if len(body.Models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(body.Models))
	}
	if body.Models[0].Credential != "********" {
		t.Fatalf("expected redacted credential, got %q", body.Models[0].Credential)
	}
	if body.Models[1].Credential != "" {
		t.Fatalf("expected empty credential to stay empty, got %q", body.Models[1].Credential)
	}
	if body.Active != "primary" {
		t.Fatalf("expected first model active, got %q", body.Active)
	}
}

func TestTranslate(t *testing.T) {
	t.Parallel()

	srv := newServer(t, Deps{})

	resp := postJSON(t, srv.URL+"/api/v1/translate", map[string]string{"text": "こんにちは"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Translation string `json:"translation"`
		ModelID     string `json:"model_id"`
	}
	decode(t, resp, &body)
	if body.Translation != "Hello." || body.ModelID != "primary" {
		t.Fatalf("unexpected response: %+v", body)
	}

	resp = postJSON(t, srv.URL+"/api/v1/translate", map[string]string{"text": "  "}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank text: expected 400, got %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/api/v1/translate", map[string]string{"text": "hi", "model_id": "missing"}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown model: expected 404, got %d", resp.StatusCode)
	}
}

func TestTranslateErrorStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		kind   translation.Kind
	}{
		{"rate limit", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"}, http.StatusTooManyRequests, translation.KindRateLimit},
		{"credential", &openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "bad key"}, http.StatusBadGateway, translation.KindCredential},
		{"blocked", errors.New("candidate was blocked due to SAFETY"), http.StatusUnprocessableEntity, translation.KindContentBlocked},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, translation.KindTimeout},
		{"unknown", errors.New("boom"), http.StatusBadGateway, translation.KindUnknown},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := newServer(t, Deps{Translator: translatorFunc(func(context.Context, string, string, string, models.ModelDescriptor) (string, error) {
				return "", tt.err
			})})

			resp := postJSON(t, srv.URL+"/api/v1/translate", map[string]string{"text": "hi"}, nil)
			if resp.StatusCode != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, resp.StatusCode)
			}
			var body map[string]string
			decode(t, resp, &body)
			if body["kind"] != string(tt.kind) {
				t.Fatalf("expected kind %s, got %q", tt.kind, body["kind"])
			}
			if body["error"] == "" {
				t.Fatal("expected error message")
			}
		})
	}
}

func TestAuthRequiredWhenConfigured(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.APIKeys = []string{"k-123"}
	usage := &fakeUsage{}
	srv := newServer(t, Deps{Config: cfg, Usage: usage})

	get := func(path string, header http.Header) int {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+path, nil)
		for k, v := range header {
			req.Header[k] = v
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := get("/api/v1/models", nil); code != http.StatusUnauthorized {
		t.Fatalf("no credentials: expected 401, got %d", code)
	}
	if code := get("/healthz", nil); code != http.StatusOK {
		t.Fatalf("healthz stays public: expected 200, got %d", code)
	}
	if code := get("/api/v1/models", http.Header{"X-Api-Key": {"k-123"}}); code != http.StatusOK {
		t.Fatalf("api key: expected 200, got %d", code)
	}

	userToken, err := auth.NewToken("test-secret", "u-1", auth.RoleUser, time.Hour)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	bearer := http.Header{"Authorization": {"Bearer " + userToken}}
	if code := get("/api/v1/models", bearer); code != http.StatusOK {
		t.Fatalf("jwt: expected 200, got %d", code)
	}
	if code := get("/api/v1/admin/usage", bearer); code != http.StatusForbidden {
		t.Fatalf("user on admin route: expected 403, got %d", code)
	}
	if code := get("/api/v1/admin/usage?start_date=2026-01-01T00:00:00Z", http.Header{"X-Api-Key": {"k-123"}}); code != http.StatusOK {
		t.Fatalf("admin usage: expected 200, got %d", code)
	}
	if usage.start == nil || usage.end != nil {
		t.Fatalf("expected start date only, got %v %v", usage.start, usage.end)
	}
	if code := get("/api/v1/admin/usage?end_date=yesterday", http.Header{"X-Api-Key": {"k-123"}}); code != http.StatusBadRequest {
		t.Fatalf("bad date: expected 400, got %d", code)
	}
}

func TestAdminRoutesAbsentWithoutDatabase(t *testing.T) {
	t.Parallel()

	srv := newServer(t, Deps{})
	resp, err := http.Get(srv.URL + "/api/v1/admin/usage")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestLiveSession(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Auth.JWTSecret = "test-secret"
	srv := newServer(t, Deps{Config: cfg})

	token, err := auth.NewToken("test-secret", "u-1", auth.RoleUser, time.Hour)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/sessions/live"

	if _, resp, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Fatal("expected unauthenticated dial to fail")
	} else if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(url+"?access_token="+token, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	send := func(msg any) {
		t.Helper()
		if err := conn.WriteJSON(msg); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	send(map[string]any{"type": "hello", "speech_supported": true})
	send(map[string]any{"type": "start"})

	deadline := time.Now().Add(5 * time.Second)
	_ = conn.SetReadDeadline(deadline)

	readUntil := func(match func(map[string]any) bool) map[string]any {
		t.Helper()
		for {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				t.Fatalf("read: %v", err)
			}
			if match(msg) {
				return msg
			}
		}
	}

	cmd := readUntil(func(m map[string]any) bool { return m["type"] == "recognizer" })
	if cmd["action"] != "start" || cmd["lang"] != "ja-JP" {
		t.Fatalf("unexpected recognizer command: %v", cmd)
	}

	run := cmd["run"]
	send(map[string]any{"type": "recognition.start", "run": run})
	send(map[string]any{
		"type":         "recognition.result",
		"run":          run,
		"result_index": 0,
		"results": []map[string]any{
			{"is_final": true, "alternatives": []map[string]any{{"transcript": "こんにちは", "confidence": 0.9}}},
		},
	})

	snap := readUntil(func(m map[string]any) bool {
		return m["type"] == "snapshot" && m["translation"] == "Hello."
	})
	if snap["state"] != "listening" || snap["transcript"] != "こんにちは" {
		t.Fatalf("unexpected snapshot: %v", snap)
	}
}
