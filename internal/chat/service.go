// Package chat handles one chat request end to end: rate limiting, workspace
// context, prompt assembly, the agent loop, and session persistence.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"

	"lesson-assistant/internal/agent"
	"lesson-assistant/internal/model"
	"lesson-assistant/internal/prompt"
	"lesson-assistant/internal/session"
	"lesson-assistant/internal/textnorm"
	"lesson-assistant/internal/workspace"
)

var (
	// ErrSessionBusy is returned when the session already has a run in flight.
	ErrSessionBusy = errors.New("session already has an active run")
	// ErrMessagesRequired is returned when the request has no user message.
	ErrMessagesRequired = errors.New("messages must include a user message")
	// ErrModelRequired is returned when the request names no model.
	ErrModelRequired = errors.New("model is required")
)

// RateLimitError is returned when a teacher exceeds the request window.
type RateLimitError struct {
	RetryAfter int
}

func (e *RateLimitError) Error() string {
	return "Rate limited"
}

// Request is the body of a chat call.
type Request struct {
	Messages  []model.ChatMessage `json:"messages"`
	Provider  string              `json:"provider"`
	Model     string              `json:"model"`
	SessionID string              `json:"sessionId,omitempty"`
	Stream    bool                `json:"stream,omitempty"`
	MaxTokens int                 `json:"maxTokens,omitempty"`
	ClassRef  string              `json:"classRef,omitempty"`
	// Direct skips the tool loop and makes a single model call.
	Direct bool `json:"direct,omitempty"`
}

// Response is the result of a chat call.
type Response struct {
	Status                 string              `json:"status"`
	Response               string              `json:"response"`
	Messages               []model.ChatMessage `json:"messages"`
	Usage                  model.TokenUsage    `json:"usage"`
	SessionID              string              `json:"sessionId"`
	SkillsLoaded           []string            `json:"skillsLoaded"`
	WorkspaceContextLoaded []string            `json:"workspaceContextLoaded"`
	ClassRef               string              `json:"classRef,omitempty"`
}

// Workspace loads prompt context for a teacher.
type Workspace interface {
	LoadContext(ctx context.Context, teacherID string, messages []model.ChatMessage, classRef string) (*workspace.LoadedContext, error)
}

// Sessions persists conversations.
type Sessions interface {
	Create(ctx context.Context, teacherID, provider, modelName string, messages []model.ChatMessage) (*session.Session, error)
	Get(ctx context.Context, teacherID, id string) (*session.Session, error)
	AppendMessages(ctx context.Context, teacherID, id string, messages []model.ChatMessage, provider, modelName string) (*session.Session, error)
	Delete(ctx context.Context, teacherID, id string) error
}

// Model is the adapter surface used for direct calls and the agent loop.
type Model interface {
	agent.ModelCaller
	Stream(ctx context.Context, provider model.Provider, modelName string, messages []model.ChatMessage, onDelta func(string), opts ...model.CallOption) (*model.ModelResponse, error)
}

// Limiter admits or rejects requests per teacher.
type Limiter interface {
	Allow(key string) (bool, int)
}

// Manifest renders the skill manifest for the system prompt.
type Manifest interface {
	ManifestText() string
}

// RunObserver records run outcomes.
type RunObserver interface {
	ObserveAgentRun(status string)
}

// Options bound agent runs.
type Options struct {
	MaxTurns     int
	MaxBudgetUSD *float64
	PingInterval time.Duration
}

// Deps are the service collaborators. Limiter, Skills and Observer are optional.
type Deps struct {
	Model     Model
	Tools     agent.ToolDispatcher
	Workspace Workspace
	Sessions  Sessions
	Skills    Manifest
	Limiter   Limiter
	Observer  RunObserver
	Logger    *slog.Logger
}

// Service runs chat requests.
type Service struct {
	deps Deps
	opts Options
	now  func() time.Time

	mu     sync.Mutex
	active map[string]string
}

// NewService creates a chat service.
func NewService(deps Deps, opts Options) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps, opts: opts, now: time.Now, active: make(map[string]string)}
}

// Handle runs one chat request. When emit is non-nil, progress is streamed
// to it. Errors returned before the start event has been emitted are
// request errors; later errors have already been emitted as error events.
func (s *Service) Handle(ctx context.Context, teacherID string, req Request, emit Emitter) (*Response, error) {
	if s.deps.Limiter != nil {
		if ok, retry := s.deps.Limiter.Allow(teacherID); !ok {
			return nil, &RateLimitError{RetryAfter: retry}
		}
	}

	provider, err := model.ValidateProvider(req.Provider)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, ErrModelRequired
	}
	conversation := model.StripSystem(req.Messages)
	lastUser, ok := lastUserMessage(conversation)
	if !ok {
		return nil, ErrMessagesRequired
	}

	if req.SessionID != "" {
		if _, err := s.deps.Sessions.Get(ctx, teacherID, req.SessionID); err != nil {
			return nil, err
		}
	}

	loaded, err := s.deps.Workspace.LoadContext(ctx, teacherID, conversation, req.ClassRef)
	if err != nil {
		return nil, fmt.Errorf("load workspace context: %w", err)
	}

	manifest := ""
	if s.deps.Skills != nil {
		manifest = s.deps.Skills.ManifestText()
	}
	assembled := prompt.Assemble(prompt.Params{
		AssistantIdentity: loaded.AssistantIdentity,
		AgentInstructions: prompt.DefaultAgentInstructions,
		WorkspaceContext:  loaded.Sections,
		SkillManifest:     manifest,
		ToolInstructions:  prompt.DefaultToolInstructions,
	})
	classRef := loaded.ClassRef
	if classRef == "" {
		classRef = "none"
	}
	s.deps.Logger.Info("prompt assembled", "teacher", teacherID, "tokens", assembled.EstimatedTokens, "class_ref", classRef)

	runID := uuid.New().String()
	createdSession := false
	sessionID := req.SessionID
	if sessionID == "" {
		sess, err := s.deps.Sessions.Create(ctx, teacherID, string(provider), req.Model, []model.ChatMessage{lastUser})
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		sessionID = sess.ID
		createdSession = true
	} else if err := s.beginRun(teacherID, sessionID, runID); err != nil {
		return nil, err
	}
	defer s.endRun(teacherID, sessionID, runID)

	modelMessages := make([]model.ChatMessage, 0, len(conversation)+1)
	modelMessages = append(modelMessages, model.ChatMessage{Role: model.RoleSystem, Content: assembled.SystemPrompt})
	modelMessages = append(modelMessages, conversation...)

	out := newStream(runID, emit, s.now)
	out.send(Event{Type: EventStart})
	stopPing := out.startPings(s.opts.PingInterval)
	defer stopPing()

	var (
		status    string
		final     string
		added     []model.ChatMessage
		usage     model.TokenUsage
		skillsHit = []string{}
	)
	if req.Direct {
		status, final, added, usage, err = s.direct(ctx, provider, req, modelMessages, out)
	} else {
		var res *agent.Result
		res, err = agent.Run(ctx, agent.Deps{Model: s.deps.Model, Tools: s.deps.Tools}, agent.Params{
			TeacherID:    teacherID,
			SessionID:    sessionID,
			Provider:     provider,
			Model:        req.Model,
			Messages:     modelMessages,
			MaxTokens:    req.MaxTokens,
			MaxTurns:     s.opts.MaxTurns,
			MaxBudgetUSD: s.opts.MaxBudgetUSD,
			Hooks: agent.Hooks{
				OnToolCall:   out.toolCall,
				OnToolResult: out.toolResult,
			},
		})
		if err == nil {
			status = string(res.Status)
			added = res.Messages[len(conversation):]
			usage = res.Usage
			skillsHit = res.SkillsLoaded
			if res.Status == agent.StatusSuccess {
				answer := res.Messages[len(res.Messages)-1].Content
				final = textnorm.TrimLeadingBlankLines(answer)
				for _, chunk := range model.ChunkText(answer) {
					out.delta(chunk)
				}
			}
		}
	}
	stopPing()
	if err != nil {
		s.observe("error")
		s.deps.Logger.Warn("chat run failed", "teacher", teacherID, "session", sessionID, tint.Err(err))
		if createdSession {
			// Drop the placeholder session.
			_ = s.deps.Sessions.Delete(context.WithoutCancel(ctx), teacherID, sessionID)
		}
		out.send(Event{Type: EventError, Message: err.Error()})
		return nil, err
	}
	s.observe(status)

	toAppend := added
	if !createdSession {
		toAppend = append([]model.ChatMessage{lastUser}, added...)
	}
	if _, err := s.deps.Sessions.AppendMessages(context.WithoutCancel(ctx), teacherID, sessionID, toAppend, string(provider), req.Model); err != nil {
		s.deps.Logger.Error("persist chat result", "teacher", teacherID, "session", sessionID, tint.Err(err))
		out.send(Event{Type: EventError, Message: err.Error()})
		return nil, err
	}

	resp := &Response{
		Status:                 status,
		Response:               final,
		Messages:               added,
		Usage:                  usage,
		SessionID:              sessionID,
		SkillsLoaded:           skillsHit,
		WorkspaceContextLoaded: loaded.LoadedPaths,
		ClassRef:               loaded.ClassRef,
	}
	s.deps.Logger.Info("chat run finished",
		"teacher", teacherID,
		"session", sessionID,
		"status", status,
		"tokens", usage.TotalTokens,
		"cost_usd", usage.EstimatedCostUSD,
		"skills", len(skillsHit),
	)
	out.send(Event{Type: EventDone, Response: resp})
	return resp, nil
}

// direct performs a single model call without tools, streaming live deltas.
func (s *Service) direct(ctx context.Context, provider model.Provider, req Request, messages []model.ChatMessage, out *stream) (string, string, []model.ChatMessage, model.TokenUsage, error) {
	var opts []model.CallOption
	if req.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(req.MaxTokens))
	}
	var (
		resp *model.ModelResponse
		err  error
	)
	if out != nil {
		resp, err = s.deps.Model.Stream(ctx, provider, req.Model, messages, out.delta, opts...)
	} else {
		resp, err = s.deps.Model.Call(ctx, provider, req.Model, messages, opts...)
	}
	if err != nil {
		return "", "", nil, model.TokenUsage{}, err
	}
	added := []model.ChatMessage{{Role: model.RoleAssistant, Content: resp.Content}}
	return string(agent.StatusSuccess), textnorm.TrimLeadingBlankLines(resp.Content), added, resp.Usage, nil
}

func (s *Service) observe(status string) {
	if s.deps.Observer != nil {
		s.deps.Observer.ObserveAgentRun(status)
	}
}

func runKey(teacherID, sessionID string) string {
	return teacherID + "\x00" + sessionID
}

func (s *Service) beginRun(teacherID, sessionID, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := runKey(teacherID, sessionID)
	if _, busy := s.active[key]; busy {
		return ErrSessionBusy
	}
	s.active[key] = runID
	return nil
}

func (s *Service) endRun(teacherID, sessionID, runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := runKey(teacherID, sessionID)
	if s.active[key] == runID {
		delete(s.active, key)
	}
}

func lastUserMessage(messages []model.ChatMessage) (model.ChatMessage, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == model.RoleUser {
			return messages[i], true
		}
	}
	return model.ChatMessage{}, false
}
