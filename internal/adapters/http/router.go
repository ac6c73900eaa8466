package httpadapter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/telarian/switchboard/internal/core/domain"
	"github.com/telarian/switchboard/internal/core/ports"
	"github.com/telarian/switchboard/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	routing    ports.QueryRouter
	attributor ports.MessageAttributor
	directory  ports.ThreadDirectory
	prefs      ports.PreferenceService
	queue      ports.MessageQueue

	metrics  *metrics.HTTPServerMetrics
	identity IdentityHeaders

	rateLimitRPS   int
	rateLimitBurst int
	maxInFlight    int
	queueWait      time.Duration
}

type RouterOptions struct {
	Metrics  *metrics.HTTPServerMetrics
	Identity IdentityHeaders
	Queue    ports.MessageQueue

	RateLimitRPS   int
	RateLimitBurst int
	MaxInFlight    int
	QueueWait      time.Duration
}

func NewRouter(
	routing ports.QueryRouter,
	attributor ports.MessageAttributor,
	directory ports.ThreadDirectory,
	prefs ports.PreferenceService,
	options RouterOptions,
) *Router {
	identity := options.Identity
	if identity.UserID == "" {
		identity = DefaultIdentityHeaders()
	}
	return &Router{
		routing:        routing,
		attributor:     attributor,
		directory:      directory,
		prefs:          prefs,
		queue:          options.Queue,
		metrics:        options.Metrics,
		identity:       identity,
		rateLimitRPS:   options.RateLimitRPS,
		rateLimitBurst: options.RateLimitBurst,
		maxInFlight:    options.MaxInFlight,
		queueWait:      options.QueueWait,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/routing/resolve", rt.resolveRouting)
	mux.HandleFunc("/v1/messages/attribute", rt.attributeMessage)
	mux.HandleFunc("/v1/preferences", rt.preferences)
	mux.HandleFunc("/v1/threads", rt.searchThreads)
	mux.HandleFunc("/v1/threads/export", rt.exportUsage)
	mux.HandleFunc("/v1/threads/", rt.threadByID)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = identityMiddleware(rt.identity, handler)
	handler = backpressureMiddleware(handler, rt.maxInFlight, rt.queueWait)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) resolveRouting(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	var body struct {
		Context     string                   `json:"context"`
		Preferences *domain.AgentPreferences `json:"preferences,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	dashContext, err := domain.ParseDashboardContext(body.Context)
	if err != nil {
		writeError(w, err)
		return
	}

	prefs := domain.AgentPreferences{}
	if body.Preferences != nil {
		prefs = *body.Preferences
	} else {
		prefs, err = rt.prefs.Load(r.Context(), user.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	decision, err := rt.routing.Resolve(r.Context(), domain.RouteRequest{
		Context:         dashContext,
		Preferences:     prefs,
		PermittedAgents: user.PermittedAgents(),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordRoutingDecision(
			serviceName,
			string(dashContext),
			string(decision.Preferred),
			string(decision.Mode),
			decision.FallbackApplied,
		)
	}
	writeJSON(w, http.StatusOK, decision)
}

func (rt *Router) attributeMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	var req domain.AttributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.UserID = user.UserID
	if _, err := domain.ParseAgent(string(req.Agent)); err != nil {
		writeError(w, err)
		return
	}

	// async=true hands the event to the attribution worker instead of
	// folding it inline.
	if rt.queue != nil && r.URL.Query().Get("async") == "true" {
		if err := rt.queue.PublishAttribution(r.Context(), req); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
		return
	}

	thread, err := rt.attributor.Attribute(r.Context(), req)
	if rt.metrics != nil {
		rt.metrics.RecordAttribution(serviceName, string(req.Agent), err)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil && len(thread.Handoffs) > 0 {
		last := thread.Handoffs[len(thread.Handoffs)-1]
		if last.TriggeringMessageID == req.MessageID {
			rt.metrics.RecordHandoff(serviceName, string(last.ToAgent))
		}
	}
	writeJSON(w, http.StatusOK, thread)
}

func (rt *Router) preferences(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		prefs, err := rt.prefs.Load(r.Context(), user.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, prefs)
	case http.MethodPut:
		var prefs domain.AgentPreferences
		if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if err := rt.prefs.Update(r.Context(), user.UserID, prefs); err != nil {
			writeError(w, err)
			return
		}
		if rt.metrics != nil {
			rt.metrics.RecordPreferenceWrite(serviceName, "update")
		}
		writeJSON(w, http.StatusOK, prefs)
	case http.MethodDelete:
		if err := rt.prefs.Reset(r.Context(), user.UserID); err != nil {
			writeError(w, err)
			return
		}
		if rt.metrics != nil {
			rt.metrics.RecordPreferenceWrite(serviceName, "reset")
		}
		writeJSON(w, http.StatusOK, domain.DefaultPreferences())
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (rt *Router) searchThreads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	params, err := parseSearchParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	threads, err := rt.directory.Search(r.Context(), user.UserID, params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"threads": threads,
		"total":   len(threads),
	})
}

func (rt *Router) exportUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="agent-usage.xlsx"`)
	err = rt.directory.ExportUsage(r.Context(), user.UserID, w)
	if rt.metrics != nil {
		rt.metrics.RecordUsageExport(serviceName, err)
	}
	if err != nil {
		// Headers are already out; the truncated body is the best signal left.
		slog.Error("usage_export_failed",
			"request_id", requestIDFromContext(r.Context()),
			"user_id", user.UserID,
			"error", err,
		)
	}
}

func (rt *Router) threadByID(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/threads/")
	parts := strings.SplitN(rest, "/", 2)
	threadID := parts[0]
	if threadID == "" {
		writeJSONError(w, http.StatusBadRequest, "thread id is required")
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		thread, err := rt.directory.Get(r.Context(), user.UserID, threadID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, thread)
		return
	}

	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var thread *domain.ConversationThread
	switch parts[1] {
	case "pin":
		thread, err = rt.directory.SetPinned(r.Context(), user.UserID, threadID, true)
	case "unpin":
		thread, err = rt.directory.SetPinned(r.Context(), user.UserID, threadID, false)
	case "archive":
		thread, err = rt.directory.SetArchived(r.Context(), user.UserID, threadID, true)
	case "unarchive":
		thread, err = rt.directory.SetArchived(r.Context(), user.UserID, threadID, false)
	case "rate":
		var body struct {
			Rating int `json:"rating"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		thread, err = rt.directory.Rate(r.Context(), user.UserID, threadID, body.Rating)
	case "tags":
		var body struct {
			Add    []string `json:"add,omitempty"`
			Remove []string `json:"remove,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		thread, err = rt.directory.MutateTags(r.Context(), user.UserID, threadID, body.Add, body.Remove)
	default:
		writeJSONError(w, http.StatusNotFound, "unknown thread action")
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

func parseSearchParams(r *http.Request) (domain.SearchParams, error) {
	q := r.URL.Query()
	params := domain.SearchParams{Query: q.Get("q")}

	for _, raw := range splitCSV(q.Get("agents")) {
		agent, err := domain.ParseAgent(raw)
		if err != nil {
			return domain.SearchParams{}, err
		}
		params.Agents = append(params.Agents, agent)
	}
	for _, raw := range splitCSV(q.Get("contexts")) {
		dashContext, err := domain.ParseDashboardContext(raw)
		if err != nil {
			return domain.SearchParams{}, err
		}
		params.Contexts = append(params.Contexts, dashContext)
	}
	params.Tags = splitCSV(q.Get("tags"))

	var err error
	if params.UpdatedAfter, err = parseTimeParam(q.Get("updated_after"), "updated_after"); err != nil {
		return domain.SearchParams{}, err
	}
	if params.UpdatedBefore, err = parseTimeParam(q.Get("updated_before"), "updated_before"); err != nil {
		return domain.SearchParams{}, err
	}
	if params.HasHandoffs, err = parseBoolParam(q.Get("has_handoffs"), "has_handoffs"); err != nil {
		return domain.SearchParams{}, err
	}
	if params.Pinned, err = parseBoolParam(q.Get("pinned"), "pinned"); err != nil {
		return domain.SearchParams{}, err
	}
	if params.Archived, err = parseBoolParam(q.Get("archived"), "archived"); err != nil {
		return domain.SearchParams{}, err
	}

	if raw := q.Get("min_rating"); raw != "" {
		rating, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return domain.SearchParams{}, domain.WrapError(domain.ErrInvalidInput, "parse search params", fmt.Errorf("min_rating %q is not a number", raw))
		}
		params.MinRating = rating
	}

	if raw := q.Get("sort"); raw != "" {
		field, parseErr := domain.ParseSortField(raw)
		if parseErr != nil {
			return domain.SearchParams{}, parseErr
		}
		params.Sort.Field = field
		params.Sort.Descending = q.Get("order") != "asc"
	}
	return params, nil
}

func parseTimeParam(raw, name string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse search params", fmt.Errorf("%s %q is not RFC3339", name, raw))
	}
	return &parsed, nil
}

func parseBoolParam(raw, name string) (*bool, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse search params", fmt.Errorf("%s %q is not a boolean", name, raw))
	}
	return &parsed, nil
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSONError(w, mapErrorToHTTPStatus(err), err.Error())
}
