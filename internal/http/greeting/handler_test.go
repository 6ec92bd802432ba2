package greeting

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor"
	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	applog "github.com/janisto/hello-eks/internal/platform/logging"
	appmiddleware "github.com/janisto/hello-eks/internal/platform/middleware"
	"github.com/janisto/hello-eks/internal/platform/respond"
)

func newTestRouter() chi.Router {
	router := chi.NewRouter()
	router.NotFound(respond.NotFoundHandler())
	router.Use(
		appmiddleware.RequestID(),
		chimiddleware.RealIP,
		applog.RequestLogger(),
		respond.Recoverer(),
	)
	cfg := huma.DefaultConfig("GreetingTest", "test")
	cfg.CreateHooks = nil
	api := humachi.New(router, cfg)
	Register(api)
	return router
}

func TestGetJSON(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(chimiddleware.RequestIDHeader, "greeting-get-json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}

	want := `{"message":"Hello from Flask on EKS CI/CD tutorial!"}`
	if got := string(bytes.TrimSpace(resp.Body.Bytes())); got != want {
		t.Fatalf("expected body %s, got %s", want, got)
	}
}

func TestGetJSONHasOnlyMessage(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	var body map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("json unmarshal: %v", err)
	}
	if len(body) != 1 {
		t.Fatalf("expected exactly one field, got %v", body)
	}
	if body["message"] != Message {
		t.Errorf("expected message %q, got %v", Message, body["message"])
	}
	if link := resp.Header().Get("Link"); link != "" {
		t.Errorf("expected no Link header, got %q", link)
	}
}

func TestGetCBOR(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "application/cbor")
	req.Header.Set(chimiddleware.RequestIDHeader, "greeting-get-cbor")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/cbor" {
		t.Errorf("expected application/cbor, got %s", ct)
	}

	var greeting GreetingData
	if err := cbor.Unmarshal(resp.Body.Bytes(), &greeting); err != nil {
		t.Fatalf("cbor unmarshal: %v", err)
	}
	if greeting.Message != Message {
		t.Errorf("expected %q, got %q", Message, greeting.Message)
	}
}

func TestGetIsIdempotent(t *testing.T) {
	router := newTestRouter()

	var first []byte
	for i := range 3 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("call %d: expected 200, got %d", i, resp.Code)
		}
		if i == 0 {
			first = resp.Body.Bytes()
			continue
		}
		if !bytes.Equal(first, resp.Body.Bytes()) {
			t.Fatalf("call %d: body changed: %s vs %s", i, first, resp.Body.Bytes())
		}
	}
}

func TestGetIgnoresQueryString(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/?name=ignored", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var greeting GreetingData
	if err := json.Unmarshal(resp.Body.Bytes(), &greeting); err != nil {
		t.Fatalf("json unmarshal: %v", err)
	}
	if greeting.Message != Message {
		t.Errorf("expected %q, got %q", Message, greeting.Message)
	}
}
