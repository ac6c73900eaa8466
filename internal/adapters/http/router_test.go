package httpadapter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/telarian/switchboard/internal/core/domain"
	"github.com/telarian/switchboard/internal/core/usecase"
	"github.com/telarian/switchboard/internal/infrastructure/export/excel"
	"github.com/telarian/switchboard/internal/infrastructure/repository/memory"
)

func newTestHandler(options RouterOptions) http.Handler {
	threads := memory.NewThreadStore()
	prefs := memory.NewPreferenceStore()
	locks := usecase.NewThreadLocks()

	router := NewRouter(
		usecase.NewRoutingUseCase(nil),
		usecase.NewAttributionUseCase(threads, locks),
		usecase.NewThreadDirectoryUseCase(threads, excel.NewReportWriter(), locks),
		usecase.NewPreferenceUseCase(prefs, nil),
		options,
	)
	return router.Handler()
}

func doJSON(t *testing.T, handler http.Handler, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestResolveRoutingRequiresIdentity(t *testing.T) {
	handler := newTestHandler(RouterOptions{})

	res := doJSON(t, handler, http.MethodPost, "/v1/routing/resolve", "", map[string]string{"context": "home"})
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity header, got %d", res.Code)
	}
}

func TestResolveRoutingWithDefaultPreferences(t *testing.T) {
	handler := newTestHandler(RouterOptions{})

	res := doJSON(t, handler, http.MethodPost, "/v1/routing/resolve", "user-1", map[string]string{"context": "home"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var decision domain.RoutingDecision
	if err := json.Unmarshal(res.Body.Bytes(), &decision); err != nil {
		t.Fatalf("decode decision: %v", err)
	}
	if decision.Preferred != domain.AgentSales {
		t.Fatalf("expected sales preferred on home, got %q", decision.Preferred)
	}
	if len(decision.Suggested) != 3 {
		t.Fatalf("expected all three agents suggested on home, got %v", decision.Suggested)
	}
	if decision.Mode != domain.RoutingModeAuto {
		t.Fatalf("expected auto mode, got %q", decision.Mode)
	}
}

func TestResolveRoutingRejectsUnknownContext(t *testing.T) {
	handler := newTestHandler(RouterOptions{})

	res := doJSON(t, handler, http.MethodPost, "/v1/routing/resolve", "user-1", map[string]string{"context": "dashboard-42"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown context, got %d", res.Code)
	}
}

func TestResolveRoutingHonorsPermittedAgents(t *testing.T) {
	handler := newTestHandler(RouterOptions{})

	req := httptest.NewRequest(http.MethodPost, "/v1/routing/resolve", bytes.NewReader([]byte(`{"context":"home"}`)))
	req.Header.Set("X-User-Id", "user-1")
	req.Header.Set("X-User-Permissions", "agent:analytics, agent:talent")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var decision domain.RoutingDecision
	if err := json.Unmarshal(res.Body.Bytes(), &decision); err != nil {
		t.Fatalf("decode decision: %v", err)
	}
	for _, agent := range decision.Suggested {
		if agent == domain.AgentSales {
			t.Fatalf("sales must not be suggested without permission: %v", decision.Suggested)
		}
	}
}

func TestAttributeCreatesThreadAndRecordsHandoffs(t *testing.T) {
	handler := newTestHandler(RouterOptions{})

	for i, agent := range []string{"sales", "sales", "analytics"} {
		res := doJSON(t, handler, http.MethodPost, "/v1/messages/attribute", "user-1", map[string]any{
			"thread_id":  "thread-1",
			"agent":      agent,
			"message_id": fmt.Sprintf("msg-%d", i),
			"context":    "home",
			"confidence": 0.9,
		})
		if res.Code != http.StatusOK {
			t.Fatalf("attribute %d expected 200, got %d: %s", i, res.Code, res.Body.String())
		}
	}

	res := doJSON(t, handler, http.MethodGet, "/v1/threads/thread-1", "user-1", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("get thread expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var thread domain.ConversationThread
	if err := json.Unmarshal(res.Body.Bytes(), &thread); err != nil {
		t.Fatalf("decode thread: %v", err)
	}
	if thread.MessageCount != 3 {
		t.Fatalf("expected 3 messages, got %d", thread.MessageCount)
	}
	if len(thread.Handoffs) != 2 {
		t.Fatalf("expected 2 handoff events, got %d", len(thread.Handoffs))
	}
	if thread.PrimaryAgent != domain.AgentSales {
		t.Fatalf("expected sales primary, got %q", thread.PrimaryAgent)
	}
}

func TestAttributeRejectsUnknownAgent(t *testing.T) {
	handler := newTestHandler(RouterOptions{})

	res := doJSON(t, handler, http.MethodPost, "/v1/messages/attribute", "user-1", map[string]any{
		"thread_id": "thread-1",
		"agent":     "astrology",
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown agent, got %d", res.Code)
	}
}

func TestThreadOwnershipIsEnforced(t *testing.T) {
	handler := newTestHandler(RouterOptions{})

	res := doJSON(t, handler, http.MethodPost, "/v1/messages/attribute", "user-1", map[string]any{
		"thread_id": "thread-1",
		"agent":     "sales",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("attribute expected 200, got %d", res.Code)
	}

	res = doJSON(t, handler, http.MethodGet, "/v1/threads/thread-1", "user-2", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign thread, got %d", res.Code)
	}
}

func TestSearchThreadsFiltersByAgent(t *testing.T) {
	handler := newTestHandler(RouterOptions{})

	seed := []struct {
		threadID string
		agent    string
	}{
		{"thread-a", "sales"},
		{"thread-b", "talent"},
	}
	for _, s := range seed {
		res := doJSON(t, handler, http.MethodPost, "/v1/messages/attribute", "user-1", map[string]any{
			"thread_id": s.threadID,
			"agent":     s.agent,
		})
		if res.Code != http.StatusOK {
			t.Fatalf("seed attribute expected 200, got %d", res.Code)
		}
	}

	res := doJSON(t, handler, http.MethodGet, "/v1/threads?agents=talent", "user-1", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("search expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var payload struct {
		Threads []domain.ConversationThread `json:"threads"`
		Total   int                         `json:"total"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode search payload: %v", err)
	}
	if payload.Total != 1 || payload.Threads[0].ID != "thread-b" {
		t.Fatalf("expected only thread-b, got %+v", payload)
	}
}

func TestSearchThreadsRejectsMalformedFilter(t *testing.T) {
	handler := newTestHandler(RouterOptions{})

	res := doJSON(t, handler, http.MethodGet, "/v1/threads?pinned=maybe", "user-1", nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed boolean, got %d", res.Code)
	}
}

func TestPreferencesLifecycle(t *testing.T) {
	handler := newTestHandler(RouterOptions{})

	res := doJSON(t, handler, http.MethodGet, "/v1/preferences", "user-1", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("load defaults expected 200, got %d", res.Code)
	}
	var prefs domain.AgentPreferences
	if err := json.Unmarshal(res.Body.Bytes(), &prefs); err != nil {
		t.Fatalf("decode preferences: %v", err)
	}
	if prefs.RoutingMode != domain.RoutingModeAuto {
		t.Fatalf("expected auto defaults, got %q", prefs.RoutingMode)
	}

	update := domain.AgentPreferences{
		RoutingMode:      domain.RoutingModeManual,
		SelectedAgents:   []domain.Agent{domain.AgentTalent},
		AutoRouteEnabled: false,
		ContextAware:     true,
	}
	res = doJSON(t, handler, http.MethodPut, "/v1/preferences", "user-1", update)
	if res.Code != http.StatusOK {
		t.Fatalf("update expected 200, got %d: %s", res.Code, res.Body.String())
	}

	res = doJSON(t, handler, http.MethodGet, "/v1/preferences", "user-1", nil)
	if err := json.Unmarshal(res.Body.Bytes(), &prefs); err != nil {
		t.Fatalf("decode preferences: %v", err)
	}
	if prefs.RoutingMode != domain.RoutingModeManual || len(prefs.SelectedAgents) != 1 {
		t.Fatalf("expected stored manual selection, got %+v", prefs)
	}

	res = doJSON(t, handler, http.MethodDelete, "/v1/preferences", "user-1", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("reset expected 200, got %d", res.Code)
	}
	res = doJSON(t, handler, http.MethodGet, "/v1/preferences", "user-1", nil)
	if err := json.Unmarshal(res.Body.Bytes(), &prefs); err != nil {
		t.Fatalf("decode preferences: %v", err)
	}
	if prefs.RoutingMode != domain.RoutingModeAuto {
		t.Fatalf("expected defaults after reset, got %+v", prefs)
	}
}

func TestPreferencesRejectEmptySelection(t *testing.T) {
	handler := newTestHandler(RouterOptions{})

	res := doJSON(t, handler, http.MethodPut, "/v1/preferences", "user-1", domain.AgentPreferences{
		RoutingMode:      domain.RoutingModeManual,
		SelectedAgents:   nil,
		AutoRouteEnabled: false,
		ContextAware:     true,
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty selection, got %d", res.Code)
	}
}

func TestThreadActions(t *testing.T) {
	handler := newTestHandler(RouterOptions{})

	res := doJSON(t, handler, http.MethodPost, "/v1/messages/attribute", "user-1", map[string]any{
		"thread_id": "thread-1",
		"agent":     "sales",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("seed attribute expected 200, got %d", res.Code)
	}

	res = doJSON(t, handler, http.MethodPost, "/v1/threads/thread-1/pin", "user-1", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("pin expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var thread domain.ConversationThread
	if err := json.Unmarshal(res.Body.Bytes(), &thread); err != nil {
		t.Fatalf("decode thread: %v", err)
	}
	if !thread.Pinned {
		t.Fatalf("expected pinned thread")
	}

	res = doJSON(t, handler, http.MethodPost, "/v1/threads/thread-1/rate", "user-1", map[string]int{"rating": 6})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for rating 6, got %d", res.Code)
	}
	res = doJSON(t, handler, http.MethodPost, "/v1/threads/thread-1/rate", "user-1", map[string]int{"rating": 5})
	if res.Code != http.StatusOK {
		t.Fatalf("rate expected 200, got %d", res.Code)
	}

	res = doJSON(t, handler, http.MethodPost, "/v1/threads/thread-1/tags", "user-1", map[string]any{
		"add": []string{"q3", "pipeline"},
	})
	if res.Code != http.StatusOK {
		t.Fatalf("tags expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if err := json.Unmarshal(res.Body.Bytes(), &thread); err != nil {
		t.Fatalf("decode thread: %v", err)
	}
	if len(thread.Tags) != 2 {
		t.Fatalf("expected 2 tags, got %v", thread.Tags)
	}

	res = doJSON(t, handler, http.MethodPost, "/v1/threads/thread-1/promote", "user-1", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown action, got %d", res.Code)
	}
}

func TestExportUsageReturnsWorkbook(t *testing.T) {
	handler := newTestHandler(RouterOptions{})

	res := doJSON(t, handler, http.MethodPost, "/v1/messages/attribute", "user-1", map[string]any{
		"thread_id": "thread-1",
		"agent":     "analytics",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("seed attribute expected 200, got %d", res.Code)
	}

	res = doJSON(t, handler, http.MethodGet, "/v1/threads/export", "user-1", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("export expected 200, got %d", res.Code)
	}
	if got := res.Header().Get("Content-Type"); got != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("unexpected content type %q", got)
	}
	if res.Body.Len() == 0 {
		t.Fatalf("expected workbook bytes in response")
	}
}
