package chat

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"lesson-assistant/internal/agent"
	"lesson-assistant/internal/logging"
	"lesson-assistant/internal/metrics"
	"lesson-assistant/internal/model"
	"lesson-assistant/internal/ratelimit"
	"lesson-assistant/internal/session"
	"lesson-assistant/internal/skills"
	"lesson-assistant/internal/storage"
	"lesson-assistant/internal/tools"
	"lesson-assistant/internal/workspace"
)

type fixture struct {
	svc      *Service
	sessions *session.Store
	ws       *workspace.Store
	adapter  *model.Adapter
}

func newFixture(t *testing.T, opts Options, limiter Limiter) *fixture {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()
	ws, err := workspace.NewStore(ctx, db)
	if err != nil {
		t.Fatalf("workspace store: %v", err)
	}
	sessions, err := session.NewStore(ctx, db)
	if err != nil {
		t.Fatalf("session store: %v", err)
	}

	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "skills/backward-design/SKILL.md", []byte("---\nname: backward-design\ndescription: Plan from outcomes\n---\nStart from goals."), 0o644)
	_ = afero.WriteFile(fs, "skills/backward-design/examples.md", []byte("Example unit."), 0o644)
	cache := skills.NewCache(fs, "skills")

	adapter := model.NewAdapter(model.Config{})
	registry := tools.NewRegistry(ws, cache, sessions)
	svc := NewService(Deps{
		Model:     adapter,
		Tools:     registry,
		Workspace: ws,
		Sessions:  sessions,
		Skills:    cache,
		Limiter:   limiter,
		Observer:  metrics.New(),
		Logger:    logging.Discard(),
	}, opts)
	return &fixture{svc: svc, sessions: sessions, ws: ws, adapter: adapter}
}

func userRequest(modelName, text string) Request {
	return Request{
		Provider: "openai",
		Model:    modelName,
		Messages: []model.ChatMessage{{Role: model.RoleUser, Content: text}},
	}
}

func TestHandleAgentRunPersistsSession(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	ctx := context.Background()

	resp, err := f.svc.Handle(ctx, "t1", userRequest(model.MockAgenticSkill, "Plan fractions for 3B"), nil)
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if resp.Status != string(agent.StatusSuccess) {
		t.Fatalf("status=%s want success", resp.Status)
	}
	if !strings.Contains(resp.Response, "Lesson plan drafted with backward-design for: Plan fractions for 3B") {
		t.Fatalf("response=%q", resp.Response)
	}
	if diff := cmp.Diff([]string{"backward-design"}, resp.SkillsLoaded); diff != "" {
		t.Fatalf("skills mismatch:\n%s", diff)
	}
	if resp.ClassRef != "3B" {
		t.Fatalf("classRef=%q want 3B", resp.ClassRef)
	}
	if got := resp.WorkspaceContextLoaded[len(resp.WorkspaceContextLoaded)-1]; got != workspace.SoulPath {
		t.Fatalf("last loaded path=%q want soul.md", got)
	}

	sess, err := f.sessions.Get(ctx, "t1", resp.SessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	var roles []string
	for _, msg := range sess.Messages {
		roles = append(roles, msg.Role)
	}
	want := []string{"user", "assistant", "tool", "tool", "assistant"}
	if diff := cmp.Diff(want, roles); diff != "" {
		t.Fatalf("persisted roles mismatch:\n%s", diff)
	}
	if len(resp.Messages) != 4 {
		t.Fatalf("response messages=%d want 4 new messages", len(resp.Messages))
	}
}

func TestHandleStreamsEvents(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	var events []Event
	resp, err := f.svc.Handle(context.Background(), "t1", userRequest(model.MockAgenticSkill, "Plan fractions"), func(ev Event) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	var types []string
	var deltas strings.Builder
	for i, ev := range events {
		if ev.Seq != i+1 {
			t.Fatalf("event %d seq=%d", i, ev.Seq)
		}
		if ev.Type == EventPing {
			continue
		}
		types = append(types, ev.Type)
		if ev.Type == EventDelta {
			deltas.WriteString(ev.Delta)
		}
	}
	if types[0] != EventStart || types[len(types)-1] != EventDone {
		t.Fatalf("event types=%v", types)
	}
	var calls, results int
	for _, typ := range types {
		switch typ {
		case EventToolCall:
			calls++
		case EventToolResult:
			results++
		}
	}
	if calls != 2 || results != 2 {
		t.Fatalf("tool events calls=%d results=%d want 2/2", calls, results)
	}
	if deltas.String() != resp.Response {
		t.Fatalf("deltas=%q want %q", deltas.String(), resp.Response)
	}
	if done := events[len(events)-1]; done.Response == nil || done.Response.SessionID != resp.SessionID {
		t.Fatalf("done event=%+v", done)
	}
}

func TestHandleDirectStreamsLiveDeltas(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	req := userRequest("mock", "hello there")
	req.Direct = true
	var deltas []string
	resp, err := f.svc.Handle(context.Background(), "t1", req, func(ev Event) {
		if ev.Type == EventDelta {
			deltas = append(deltas, ev.Delta)
		}
	})
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if resp.Response != "[mock:openai/mock] hello there" {
		t.Fatalf("response=%q", resp.Response)
	}
	if diff := cmp.Diff([]string{"[mock:openai/mock] ", "hello ", "there"}, deltas); diff != "" {
		t.Fatalf("deltas mismatch:\n%s", diff)
	}
	if len(resp.SkillsLoaded) != 0 {
		t.Fatalf("direct mode loaded skills: %v", resp.SkillsLoaded)
	}
}

// blankLeadModel streams an answer that opens with blank lines.
type blankLeadModel struct {
	*model.Adapter
}

func (m blankLeadModel) Stream(_ context.Context, _ model.Provider, _ string, _ []model.ChatMessage, onDelta func(string), _ ...model.CallOption) (*model.ModelResponse, error) {
	for _, d := range []string{"\n", "\n", "hello ", "there"} {
		onDelta(d)
	}
	return &model.ModelResponse{Content: "\n\nhello there", ToolCalls: []model.ToolCall{}, Usage: model.NewUsage(5, 3), StopReason: model.StopReasonStop}, nil
}

func TestHandleDirectDropsLeadingBlankLines(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	deps := f.svc.deps
	deps.Model = blankLeadModel{f.adapter}
	svc := NewService(deps, Options{})

	req := userRequest("gpt-4o", "hi")
	req.Direct = true
	var deltas []string
	resp, err := svc.Handle(context.Background(), "t1", req, func(ev Event) {
		if ev.Type == EventDelta {
			deltas = append(deltas, ev.Delta)
		}
	})
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if diff := cmp.Diff([]string{"hello ", "there"}, deltas); diff != "" {
		t.Fatalf("deltas mismatch:\n%s", diff)
	}
	if resp.Response != "hello there" {
		t.Fatalf("response=%q want %q", resp.Response, "hello there")
	}
	if got := resp.Messages[len(resp.Messages)-1].Content; got != "\n\nhello there" {
		t.Fatalf("stored assistant content=%q want raw model text", got)
	}
}

func TestHandleAgentAnswerDropsLeadingBlankLines(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	f.adapter.RegisterMock("mock-padded", func(model.Provider, string, []model.ChatMessage) model.MockReply {
		return model.MockReply{Content: "\n \n  indented\nanswer"}
	})
	var deltas []string
	resp, err := f.svc.Handle(context.Background(), "t1", userRequest("mock-padded", "hi"), func(ev Event) {
		if ev.Type == EventDelta {
			deltas = append(deltas, ev.Delta)
		}
	})
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if resp.Response != "  indented\nanswer" {
		t.Fatalf("response=%q", resp.Response)
	}
	if got := strings.Join(deltas, ""); got != resp.Response {
		t.Fatalf("deltas %q do not concatenate to response %q", deltas, resp.Response)
	}
	if len(deltas) == 0 || strings.TrimSpace(deltas[0]) == "" {
		t.Fatalf("first delta %q is blank", deltas)
	}
}

func TestHandleAppendsToExistingSession(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	ctx := context.Background()
	sess, err := f.sessions.Create(ctx, "t1", "openai", "mock", []model.ChatMessage{
		{Role: model.RoleUser, Content: "first"},
		{Role: model.RoleAssistant, Content: "reply"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	req := Request{
		Provider:  "anthropic",
		Model:     "mock",
		SessionID: sess.ID,
		Messages: []model.ChatMessage{
			{Role: model.RoleUser, Content: "first"},
			{Role: model.RoleAssistant, Content: "reply"},
			{Role: model.RoleUser, Content: "second"},
		},
	}
	if _, err := f.svc.Handle(ctx, "t1", req, nil); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	got, err := f.sessions.Get(ctx, "t1", sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := []model.ChatMessage{
		{Role: model.RoleUser, Content: "first"},
		{Role: model.RoleAssistant, Content: "reply"},
		{Role: model.RoleUser, Content: "second"},
		{Role: model.RoleAssistant, Content: "[mock:anthropic/mock] second"},
	}
	if diff := cmp.Diff(want, got.Messages); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}
	if got.Provider != "anthropic" {
		t.Fatalf("provider=%q want anthropic", got.Provider)
	}
}

func TestHandleRequestErrors(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"bad provider", Request{Provider: "gemini", Model: "mock", Messages: []model.ChatMessage{{Role: "user", Content: "x"}}}, model.ErrUnsupportedProvider},
		{"no model", Request{Provider: "openai", Messages: []model.ChatMessage{{Role: "user", Content: "x"}}}, ErrModelRequired},
		{"no user message", Request{Provider: "openai", Model: "mock", Messages: []model.ChatMessage{{Role: "system", Content: "x"}}}, ErrMessagesRequired},
		{"unknown session", Request{Provider: "openai", Model: "mock", SessionID: "missing", Messages: []model.ChatMessage{{Role: "user", Content: "x"}}}, session.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emitted := false
			_, err := f.svc.Handle(ctx, "t1", tt.req, func(Event) { emitted = true })
			if !errors.Is(err, tt.want) {
				t.Fatalf("err=%v want %v", err, tt.want)
			}
			if emitted {
				t.Fatal("request errors must not emit events")
			}
		})
	}
}

func TestHandleRateLimited(t *testing.T) {
	limiter, err := ratelimit.New(1, time.Minute)
	if err != nil {
		t.Fatalf("limiter: %v", err)
	}
	f := newFixture(t, Options{}, limiter)
	ctx := context.Background()
	if _, err := f.svc.Handle(ctx, "t1", userRequest("mock", "one"), nil); err != nil {
		t.Fatalf("first request: %v", err)
	}
	_, err = f.svc.Handle(ctx, "t1", userRequest("mock", "two"), nil)
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("err=%v want RateLimitError", err)
	}
	if rl.RetryAfter < 1 || rl.RetryAfter > 60 {
		t.Fatalf("retryAfter=%d", rl.RetryAfter)
	}
	if _, err := f.svc.Handle(ctx, "t2", userRequest("mock", "other teacher"), nil); err != nil {
		t.Fatalf("other teacher limited: %v", err)
	}
}

func TestHandleSessionBusy(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	ctx := context.Background()
	sess, err := f.sessions.Create(ctx, "t1", "openai", "mock", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.svc.beginRun("t1", sess.ID, "other-run"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	req := userRequest("mock", "hi")
	req.SessionID = sess.ID
	if _, err := f.svc.Handle(ctx, "t1", req, nil); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("err=%v want ErrSessionBusy", err)
	}
	f.svc.endRun("t1", sess.ID, "other-run")
	if _, err := f.svc.Handle(ctx, "t1", req, nil); err != nil {
		t.Fatalf("after release: %v", err)
	}
}

func TestHandleConfigurationErrorRemovesNewSession(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	ctx := context.Background()
	var types []string
	_, err := f.svc.Handle(ctx, "t1", userRequest("gpt-4o", "hi"), func(ev Event) { types = append(types, ev.Type) })
	if !model.IsConfigurationError(err) {
		t.Fatalf("err=%v want configuration error", err)
	}
	if diff := cmp.Diff([]string{EventStart, EventError}, types); diff != "" {
		t.Fatalf("events mismatch:\n%s", diff)
	}
	list, err := f.sessions.List(ctx, "t1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("sessions=%d want 0 after failed run", len(list))
	}
}

func TestHandleBudgetExhaustion(t *testing.T) {
	budget := 0.0
	f := newFixture(t, Options{MaxBudgetUSD: &budget}, nil)
	resp, err := f.svc.Handle(context.Background(), "t1", userRequest(model.MockAgenticSkill, "Plan"), nil)
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if resp.Status != string(agent.StatusErrorMaxBudget) {
		t.Fatalf("status=%s want error_max_budget", resp.Status)
	}
	if resp.Response != "" {
		t.Fatalf("response=%q want empty", resp.Response)
	}
}

func TestHandleSendsPings(t *testing.T) {
	f := newFixture(t, Options{PingInterval: time.Millisecond}, nil)
	f.adapter.RegisterMock("mock-slow", func(p model.Provider, m string, msgs []model.ChatMessage) model.MockReply {
		time.Sleep(20 * time.Millisecond)
		return model.MockReply{Content: "slow answer"}
	})
	var pings int
	_, err := f.svc.Handle(context.Background(), "t1", userRequest("mock-slow", "hi"), func(ev Event) {
		if ev.Type == EventPing {
			pings++
		}
	})
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if pings == 0 {
		t.Fatal("expected at least one ping during a slow run")
	}
}
