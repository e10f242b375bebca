package chat

import (
	"sync"
	"time"

	"lesson-assistant/internal/model"
	"lesson-assistant/internal/textnorm"
	"lesson-assistant/internal/tools"
)

// Event types written to NDJSON chat streams.
const (
	EventStart      = "start"
	EventPing       = "ping"
	EventToolCall   = "tool_call"
	EventToolResult = "tool_result"
	EventDelta      = "delta"
	EventDone       = "done"
	EventError      = "error"
)

const toolSummaryLen = 280

// Event is one line of a streamed chat response.
type Event struct {
	Type       string         `json:"type"`
	RunID      string         `json:"runId,omitempty"`
	Seq        int            `json:"seq"`
	TS         time.Time      `json:"ts"`
	Delta      string         `json:"delta,omitempty"`
	Tool       string         `json:"tool,omitempty"`
	ToolCallID string         `json:"toolCallId,omitempty"`
	Args       map[string]any `json:"args,omitempty"`
	IsError    bool           `json:"isError,omitempty"`
	Summary    string         `json:"summary,omitempty"`
	Message    string         `json:"message,omitempty"`
	Response   *Response      `json:"response,omitempty"`
}

// Emitter receives stream events. Calls are serialized by the service.
type Emitter func(Event)

// stream stamps and serializes events for one run. A nil stream drops everything.
type stream struct {
	mu    sync.Mutex
	runID string
	seq   int
	now   func() time.Time
	emit  Emitter
	// trim is only touched by delta, which runs on the request goroutine.
	trim textnorm.LeadingBlankLineTrimmer
}

func newStream(runID string, emit Emitter, now func() time.Time) *stream {
	if emit == nil {
		return nil
	}
	return &stream{runID: runID, emit: emit, now: now}
}

func (s *stream) send(ev Event) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	ev.RunID = s.runID
	ev.Seq = s.seq
	ev.TS = s.now().UTC()
	s.emit(ev)
}

// delta emits answer text with leading blank lines of the answer removed.
func (s *stream) delta(text string) {
	if s == nil {
		return
	}
	if text = s.trim.Push(text); text == "" {
		return
	}
	s.send(Event{Type: EventDelta, Delta: text})
}

func (s *stream) toolCall(call model.ToolCall) {
	s.send(Event{Type: EventToolCall, Tool: call.Name, ToolCallID: call.ID, Args: call.Input})
}

func (s *stream) toolResult(call model.ToolCall, res tools.Result) {
	s.send(Event{
		Type:       EventToolResult,
		Tool:       res.Name,
		ToolCallID: call.ID,
		IsError:    res.IsError,
		Summary:    textnorm.Truncate(res.Output, toolSummaryLen, 40, "…"),
	})
}

// startPings sends ping events every interval until the returned stop
// function is called. stop waits for the pinger to exit and is idempotent.
func (s *stream) startPings(interval time.Duration) (stop func()) {
	if s == nil || interval <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s.send(Event{Type: EventPing})
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
}
