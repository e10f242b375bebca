package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"lesson-assistant/internal/agent"
	"lesson-assistant/internal/auth"
	"lesson-assistant/internal/chat"
	"lesson-assistant/internal/config"
	"lesson-assistant/internal/metrics"
	"lesson-assistant/internal/model"
	"lesson-assistant/internal/ratelimit"
	"lesson-assistant/internal/session"
	"lesson-assistant/internal/skills"
	"lesson-assistant/internal/tools"
	"lesson-assistant/internal/workspace"
)

// Server holds all dependencies for the HTTP server.
type Server struct {
	config    *config.Config
	logger    *slog.Logger
	teachers  *auth.Teachers
	workspace *workspace.Store
	sessions  *session.Store
	skills    *skills.Cache
	adapter   *model.Adapter
	chat      *chat.Service
	metrics   *metrics.Recorder
}

// NewServer wires stores, the model adapter, the tool registry and the chat
// service on top of db.
func NewServer(ctx context.Context, cfg *config.Config, db *sql.DB, logger *slog.Logger) (*Server, error) {
	ws, err := workspace.NewStore(ctx, db)
	if err != nil {
		return nil, err
	}
	sessions, err := session.NewStore(ctx, db)
	if err != nil {
		return nil, err
	}
	limiter, err := ratelimit.New(cfg.RateLimitPerMinute, time.Minute)
	if err != nil {
		return nil, err
	}

	recorder := metrics.New()
	skillCache := skills.NewOsCache(cfg.SkillsRoot)

	adapter := model.NewAdapter(model.Config{
		AnthropicKey:     cfg.Providers.AnthropicKey,
		AnthropicBaseURL: cfg.Providers.AnthropicBaseURL,
		OpenAIKey:        cfg.Providers.OpenAIKey,
		OpenAIBaseURL:    cfg.Providers.OpenAIBaseURL,
	})
	adapter.SetObserver(recorder)

	registry := tools.NewRegistry(ws, skillCache, sessions)
	registry.SetObserver(recorder)

	chatSvc := chat.NewService(chat.Deps{
		Model:     adapter,
		Tools:     registry,
		Workspace: ws,
		Sessions:  sessions,
		Skills:    skillCache,
		Limiter:   limiter,
		Observer:  recorder,
		Logger:    logger,
	}, chat.Options{
		MaxTurns:     cfg.AgentMaxTurns,
		MaxBudgetUSD: agent.Budget(cfg.AgentMaxBudgetUSD),
		PingInterval: cfg.StreamPingInterval,
	})

	return &Server{
		config:    cfg,
		logger:    logger,
		teachers:  auth.NewTeachers(cfg.ValidTeachers),
		workspace: ws,
		sessions:  sessions,
		skills:    skillCache,
		adapter:   adapter,
		chat:      chatSvc,
		metrics:   recorder,
	}, nil
}

// Adapter exposes the model adapter so callers can register scripted mocks.
func (s *Server) Adapter() *model.Adapter {
	return s.adapter
}

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(srv *Server) http.Handler {
	r := chi.NewRouter()

	r.Use(RecovererMiddleware(srv.logger))
	r.Use(LoggingMiddleware(srv.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Teacher-Id"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(AuthMiddleware(srv.config.AssistantToken))
	r.Use(TeacherMiddleware(srv.teachers))

	r.Get("/healthz", srv.handleHealth)
	r.Handle("/metrics", srv.metrics.Handler())

	// Chat
	r.Post("/api/chat", srv.handleChat)

	// Sessions
	r.Get("/api/sessions", srv.handleListSessions)
	r.Post("/api/sessions", srv.handleCreateSession)
	r.Post("/api/sessions/export", srv.handleExportSessions)
	r.Get("/api/sessions/{id}", srv.handleGetSession)
	r.Delete("/api/sessions/{id}", srv.handleDeleteSession)
	r.Post("/api/sessions/{id}/messages", srv.handleAppendSessionMessages)

	// Workspace
	r.Get("/api/workspace/tree", srv.handleWorkspaceTree)
	r.Get("/api/workspace/file", srv.handleReadWorkspaceFile)
	r.Put("/api/workspace/file", srv.handleSaveWorkspaceFile)
	r.Delete("/api/workspace/file", srv.handleDeleteWorkspaceFile)
	r.Post("/api/workspace/rename", srv.handleRenameWorkspacePath)
	r.Get("/api/workspace/classes", srv.handleListClasses)

	// Skills
	r.Get("/api/skills", srv.handleListSkills)
	r.Get("/api/skills/read", srv.handleReadSkill)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
