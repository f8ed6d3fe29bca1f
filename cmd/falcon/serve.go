package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/falconwiki/falcon/internal/agentrunner"
	"github.com/falconwiki/falcon/internal/apperrors"
	"github.com/falconwiki/falcon/internal/chatsvc"
	"github.com/falconwiki/falcon/internal/config"
	"github.com/falconwiki/falcon/internal/eventbus"
	"github.com/falconwiki/falcon/internal/ingest"
	"github.com/falconwiki/falcon/internal/orchestrator"
	"github.com/falconwiki/falcon/internal/pipeline"
	"github.com/falconwiki/falcon/internal/reactloop"
	"github.com/falconwiki/falcon/internal/sandbox"
	"github.com/falconwiki/falcon/internal/sourcehost"
	"github.com/falconwiki/falcon/internal/store"
	"github.com/falconwiki/falcon/internal/wikisvc"
)

// metrics are the Prometheus gauges/counters the teacher's go.mod
// already pulled in client_golang for; /health mirrors spec §6's
// "liveness probe including active_jobs" in JSON, /metrics exposes
// the same number (and job outcome counters) for scraping.
type metrics struct {
	activeJobs    prometheus.Gauge
	jobsCompleted prometheus.Counter
	jobsFailed    prometheus.Counter
}

func newMetrics() *metrics {
	return &metrics{
		activeJobs: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "falcon_active_jobs", Help: "Number of wiki generation jobs currently running.",
		}),
		jobsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "falcon_jobs_completed_total", Help: "Wiki generation jobs that completed successfully.",
		}),
		jobsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "falcon_jobs_failed_total", Help: "Wiki generation jobs that exhausted their retry budget.",
		}),
	}
}

// server holds the wired services the HTTP boundary calls into. The
// boundary itself (routing, CORS, auth) is out of scope per spec §1;
// this is the minimal stdlib mux needed to exercise it end to end.
type server struct {
	cfg     config.Config
	store   *store.Store
	events  *eventbus.Bus
	wikis   *wikisvc.Service
	chats   *chatsvc.Service
	orch    *orchestrator.Orchestrator
	ingest  *ingest.Ingester
	metrics *metrics
	logger  *slog.Logger
}

func runServe(args []string) int {
	cfg := config.Load()
	applyServeFlags(&cfg, args)

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: levelFor(cfg.Debug),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.DatabasePath, logger)
	if err != nil {
		logger.Error("open store", "error", err)
		return 1
	}
	defer st.Close()

	events := eventbus.New(logger)
	wikis := wikisvc.New(st, cfg.WikiStorageRoot)

	agent := agentrunner.New(cfg.AgentAPIKey, logger)
	sandboxes := &sandbox.LocalProvider{}
	srcHost := sourcehost.New(cfg.SourceHostToken)

	pl := &pipeline.Pipeline{
		Store:           st,
		Events:          events,
		Sandboxes:       sandboxes,
		Agent:           agent,
		SourceHost:      srcHost,
		WikiStorageRoot: cfg.WikiStorageRoot,
		AgentTimeout:    cfg.AgentTimeout,
		MaxConcurrent:   cfg.AgentMaxConcurrent,
		AppVersion:      version,
		Logger:          logger,
	}

	orch := orchestrator.New(st, pl, cfg.MaxConcurrentJobs, cfg.JobPollInterval, logger)
	if err := orch.Start(ctx); err != nil {
		logger.Error("start orchestrator", "error", err)
		return 1
	}
	defer orch.Stop()

	// Chat completion/streaming go against the external LLM provider,
	// out of scope per spec §1; noopCompleter and noopStreamer keep the
	// HTTP surface exercisable without a live API key.
	chats := chatsvc.New(st, wikis, noopCompleter{}, noopStreamer{})
	ig := ingest.New(st, cfg.MaxFileSize, logger)

	srv := &server{cfg: cfg, store: st, events: events, wikis: wikis, chats: chats, orch: orch, ingest: ig, metrics: newMetrics(), logger: logger}

	mux := http.NewServeMux()
	srv.registerRoutes(mux)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go srv.pollActiveJobsMetric(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("falcon serve listening", "addr", cfg.HTTPAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("http server error", "error", err)
		return 1
	}
	return 0
}

func (s *server) pollActiveJobsMetric(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.store.CountActiveJobs(ctx); err == nil {
				s.metrics.activeJobs.Set(float64(n))
			}
		}
	}
}

func (s *server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/wikis", s.handleWikisCollection)
	mux.HandleFunc("/api/wikis/", s.handleWikisItem)
	mux.HandleFunc("/repos", s.handleReposCollection)
	mux.HandleFunc("/repos/", s.handleReposItem)
}

// handleReposCollection is the ingestion-facing surface's create/list
// endpoint (spec §6's "POST /repos / GET ... create returns
// {repo_id, status, file_count?}").
func (s *server) handleReposCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var body struct {
			URL string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, apperrors.New(apperrors.InvalidInput, "malformed request body"))
			return
		}
		result, err := s.ingest.Ingest(r.Context(), body.URL)
		if err != nil {
			writeError(w, err)
			return
		}
		status := "ready"
		resp := map[string]any{"repo_id": result.RepoID, "status": status}
		if result.AlreadyExists {
			resp["status"] = "already_exists"
		} else {
			resp["file_count"] = result.FileCount
		}
		writeJSON(w, http.StatusOK, resp)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleReposItem dispatches /repos/{id}[/chat], the ingestion-facing
// surface's GET/DELETE and chat SSE (spec §6).
func (s *server) handleReposItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/repos/")
	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	sub := ""
	if len(parts) == 2 {
		sub = parts[1]
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		repo, err := s.store.GetRepo(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, repo)
	case sub == "" && r.Method == http.MethodDelete:
		if err := s.store.DeleteRepo(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case sub == "chat":
		s.handleRepoChat(w, r, id)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// handleRepoChat runs the full ReAct loop (spec §4.8) over SSE,
// emitting tool_start, tool_end, text_delta, done, error as spec §6
// names for the ingestion-facing chat surface.
func (s *server) handleRepoChat(w http.ResponseWriter, r *http.Request, repoID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperrors.New(apperrors.InvalidInput, "malformed request body"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")

	events := s.chats.RunRepoChat(r.Context(), repoID, body.Question, nil)
	for ev := range events {
		data, _ := json.Marshal(eventPayload(ev))
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
		flusher.Flush()
	}
}

// eventPayload shapes a reactloop.Event into the JSON frame spec §4.8
// / §6 describe per event type.
func eventPayload(ev reactloop.Event) map[string]any {
	switch ev.Type {
	case "text_delta":
		return map[string]any{"content": ev.Content}
	case "tool_start":
		return map[string]any{"name": ev.Tool, "arguments": ev.Args}
	case "tool_end":
		return map[string]any{"name": ev.Tool, "result": ev.Content}
	case "error":
		return map[string]any{"error": ev.Content}
	default:
		return map[string]any{}
	}
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	active, _ := s.store.CountActiveJobs(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"version":     version,
		"active_jobs": active,
	})
}

func (s *server) handleWikisCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var body struct {
			GithubURL string `json:"github_url"`
			Branch    string `json:"branch"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, apperrors.New(apperrors.InvalidInput, "malformed request body"))
			return
		}
		result, err := s.wikis.CreateWiki(r.Context(), body.GithubURL, body.Branch)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"wiki_id": result.WikiID, "status": "queued"})
	case http.MethodGet:
		owner := r.URL.Query().Get("owner")
		repo := r.URL.Query().Get("repo")
		list, err := s.wikis.FindWikis(r.Context(), owner, repo)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleWikisItem dispatches /api/wikis/{id}[/status|/manifest|/pages|/events]
// the way a real router would, kept inline since routing itself is
// out of scope (spec §1).
func (s *server) handleWikisItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/wikis/")
	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	sub := ""
	if len(parts) == 2 {
		sub = parts[1]
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		wiki, err := s.wikis.GetWiki(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, wiki)
	case sub == "" && r.Method == http.MethodDelete:
		if err := s.wikis.DeleteWiki(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case sub == "status":
		status, err := s.wikis.GetStatus(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	case sub == "manifest":
		manifest, err := s.wikis.GetManifest(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, manifest)
	case sub == "pages":
		pages, err := s.wikis.ListPages(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pages)
	case strings.HasPrefix(sub, "pages/"):
		slug := strings.TrimPrefix(sub, "pages/")
		page, err := s.wikis.GetPage(r.Context(), id, slug)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	case sub == "events":
		s.handleEvents(w, r, id)
	case sub == "chat":
		s.handleChat(w, r, id)
	case strings.HasPrefix(sub, "chat/") && r.Method == http.MethodGet:
		convID := strings.TrimPrefix(sub, "chat/")
		history, err := s.chats.History(r.Context(), convID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, history)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// handleEvents streams spec §4.2 events over SSE, terminating on
// complete/error (spec §6's GET .../events).
func (s *server) handleEvents(w http.ResponseWriter, r *http.Request, wikiID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")

	ch := s.events.Subscribe(wikiID)
	defer s.events.Unsubscribe(wikiID, ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			data, _ := json.Marshal(ev.Data)
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
			if ev.Type == "complete" || ev.Type == "error" {
				return
			}
		}
	}
}

// handleChat runs one wiki-chat turn and streams thinking/complete/error,
// spec §6's POST .../chat.
func (s *server) handleChat(w http.ResponseWriter, r *http.Request, wikiID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Message        string `json:"message"`
		ConversationID string `json:"conversation_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperrors.New(apperrors.InvalidInput, "malformed request body"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	fmt.Fprintf(w, "event: thinking\ndata: {}\n\n")
	flusher.Flush()

	answer, convID, pages, err := s.chats.AskWiki(r.Context(), wikiID, body.ConversationID, body.Message)
	if err != nil {
		data, _ := json.Marshal(map[string]string{"error": err.Error()})
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
		flusher.Flush()
		return
	}

	data, _ := json.Marshal(map[string]any{
		"answer":          answer,
		"conversation_id": convID,
		"context_pages":   pages,
	})
	fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
	flusher.Flush()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := 500
	if e, ok := apperrors.As(err); ok {
		status = e.HTTPStatus()
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func levelFor(debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func applyServeFlags(cfg *config.Config, args []string) {
	fs := newFlagSet("serve")
	httpAddr := fs.String("http-addr", cfg.HTTPAddr, "Address for the HTTP/SSE boundary")
	metricsAddr := fs.String("metrics-addr", cfg.MetricsAddr, "Address for a standalone metrics listener (unused: /metrics is served on http-addr)")
	if err := fs.Parse(args); err != nil {
		return
	}
	cfg.HTTPAddr = *httpAddr
	cfg.MetricsAddr = *metricsAddr
}
