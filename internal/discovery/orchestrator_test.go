package discovery

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/serendipitylabs/serendipity/internal/agent"
	"github.com/serendipitylabs/serendipity/internal/profile"
	"github.com/serendipitylabs/serendipity/internal/session"
	"github.com/serendipitylabs/serendipity/internal/settings"
)

// scriptedAgent replays a fixed framed stream.
type scriptedAgent struct {
	frames string
	err    error
}

func (a scriptedAgent) Invoke(ctx context.Context, req agent.Request) (io.ReadCloser, error) {
	if a.err != nil {
		return nil, a.err
	}
	return io.NopCloser(&dribbleReader{data: []byte(a.frames), step: 5}), nil
}

type memRecorder struct {
	mu      sync.Mutex
	batches []session.Batch
	recent  []string
}

func (r *memRecorder) RecordBatch(ctx context.Context, sessionID string, b session.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, b)
	return nil
}

func (r *memRecorder) RecentURLs(ctx context.Context, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recent, nil
}

func newTestOrchestrator(t *testing.T, a agent.Agent, rec Recorder) *Orchestrator {
	t.Helper()
	return New(Config{
		Agent:    a,
		Settings: settings.NewResolver(filepath.Join(t.TempDir(), "settings.yaml")),
		Recorder: rec,
		Logger:   zap.NewNop(),
	})
}

func drain(events <-chan Event) []Event {
	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

const completeFrames = "event: status\ndata: {\"message\":\"planning\"}\n\n" +
	"event: tool_use\ndata: {\"tool\":\"search\",\"query\":\"ambient\"}\n\n" +
	"event: complete\ndata: {\"batch_title\":\"T\",\"recommendations\":[{\"url\":\"https://x\",\"title\":\"X\"}]}\n\n"

func TestRoundTripCommitsBatch(t *testing.T) {
	rec := &memRecorder{}
	o := newTestOrchestrator(t, scriptedAgent{frames: completeFrames}, rec)
	sess := session.NewStore().Create()

	events := drain(o.RunRound(context.Background(), sess, RoundRequest{Count: 1}))

	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(events), events)
	}
	if events[0].Type != EventStatus || events[1].Type != EventToolUse {
		t.Errorf("progress events out of order: %+v", events[:2])
	}
	last := events[2]
	if last.Type != EventComplete || !last.Terminal() {
		t.Fatalf("last event must be terminal complete, got %+v", last)
	}
	if !last.Complete.Success || last.Complete.Recommendations[0].URL != "https://x" {
		t.Errorf("complete payload = %+v", last.Complete)
	}

	batches := sess.Batches()
	if len(batches) != 1 || batches[0].Recommendations[0].URL != "https://x" {
		t.Fatalf("batch not committed: %+v", batches)
	}
	if sess.Stats().Shown != 1 {
		t.Errorf("shown = %d", sess.Stats().Shown)
	}
	if len(rec.batches) != 1 {
		t.Errorf("history not written: %+v", rec.batches)
	}
}

func TestRoundParsesFreeTextResult(t *testing.T) {
	frames := "event: status\ndata: {\"message\":\"working\"}\n\n" +
		"event: result\ndata: {\"text\":\"done\\n<output>{\\\"batch_title\\\":\\\"B\\\",\\\"recommendations\\\":[{\\\"url\\\":\\\"https://r\\\",\\\"title\\\":\\\"R\\\"}]}</output>\"}\n\n"
	o := newTestOrchestrator(t, scriptedAgent{frames: frames}, nil)
	sess := session.NewStore().Create()

	events := drain(o.RunRound(context.Background(), sess, RoundRequest{}))

	last := events[len(events)-1]
	if last.Type != EventComplete {
		t.Fatalf("expected complete, got %+v", last)
	}
	if last.Complete.BatchTitle != "B" || last.Complete.Recommendations[0].URL != "https://r" {
		t.Errorf("payload = %+v", last.Complete)
	}
	if len(sess.Batches()) != 1 {
		t.Error("batch not committed from result path")
	}
}

func TestRoundResultWithoutBlockFails(t *testing.T) {
	frames := "event: result\ndata: {\"text\":\"I could not find anything.\"}\n\n"
	o := newTestOrchestrator(t, scriptedAgent{frames: frames}, nil)
	sess := session.NewStore().Create()

	events := drain(o.RunRound(context.Background(), sess, RoundRequest{}))

	last := events[len(events)-1]
	if last.Type != EventError {
		t.Fatalf("expected error, got %+v", last)
	}
	if len(sess.Batches()) != 0 {
		t.Error("failed round must not commit a batch")
	}
}

func TestRoundTransportDropIsTerminalError(t *testing.T) {
	frames := "event: status\ndata: {\"message\":\"working\"}\n\n" +
		"event: tool_use\ndata: {\"tool\":\"search\"}\n\n"
	o := newTestOrchestrator(t, scriptedAgent{frames: frames}, nil)
	sess := session.NewStore().Create()

	events := drain(o.RunRound(context.Background(), sess, RoundRequest{}))

	last := events[len(events)-1]
	if last.Type != EventError {
		t.Fatalf("dropped stream must end in one error event, got %+v", last)
	}
	for _, ev := range events[:len(events)-1] {
		if ev.Terminal() {
			t.Errorf("extra terminal event %+v", ev)
		}
	}
	if len(sess.Batches()) != 0 {
		t.Error("dropped stream must not commit a batch")
	}
}

func TestRoundAgentErrorIsTerminal(t *testing.T) {
	frames := "event: status\ndata: {\"message\":\"working\"}\n\n" +
		"event: error\ndata: {\"error\":\"rate limited\"}\n\n"
	o := newTestOrchestrator(t, scriptedAgent{frames: frames}, nil)
	sess := session.NewStore().Create()

	events := drain(o.RunRound(context.Background(), sess, RoundRequest{}))

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %+v", events)
	}
	if events[1].Type != EventError || events[1].Err.Error != "rate limited" {
		t.Errorf("terminal = %+v", events[1])
	}
	if len(sess.Batches()) != 0 {
		t.Error("error round must not commit a batch")
	}
}

func TestRoundDropsBadProgressEvent(t *testing.T) {
	frames := "event: status\ndata: not json\n\n" + completeFrames
	o := newTestOrchestrator(t, scriptedAgent{frames: frames}, nil)
	sess := session.NewStore().Create()

	events := drain(o.RunRound(context.Background(), sess, RoundRequest{}))

	last := events[len(events)-1]
	if last.Type != EventComplete {
		t.Fatalf("bad progress payload must not abort the round: %+v", last)
	}
	if len(sess.Batches()) != 1 {
		t.Error("batch missing after recovered stream")
	}
}

func TestRoundFoldsFeedbackBeforePrompt(t *testing.T) {
	o := newTestOrchestrator(t, scriptedAgent{frames: completeFrames}, nil)
	sess := session.NewStore().Create()

	drain(o.RunRound(context.Background(), sess, RoundRequest{
		Feedback: []FeedbackEntry{
			{Key: "https://earlier", Rating: 5},
			{Key: "https://bogus", Rating: 9},
		},
	}))

	if got := sess.Feedback()["https://earlier"]; got != 5 {
		t.Errorf("feedback not recorded, got %d", got)
	}
	if _, ok := sess.Feedback()["https://bogus"]; ok {
		t.Error("out-of-range rating must be skipped")
	}
}

// pipeAgent exposes the write side so the test controls stream pacing.
type pipeAgent struct {
	pr *io.PipeReader
}

func (a *pipeAgent) Invoke(ctx context.Context, req agent.Request) (io.ReadCloser, error) {
	return a.pr, nil
}

func TestRoundCancelCommitsNothing(t *testing.T) {
	pr, pw := io.Pipe()
	o := newTestOrchestrator(t, &pipeAgent{pr: pr}, nil)
	sess := session.NewStore().Create()

	ctx, cancel := context.WithCancel(context.Background())
	events := o.RunRound(ctx, sess, RoundRequest{})

	go func() {
		pw.Write([]byte("event: status\ndata: {\"message\":\"working\"}\n\n"))
	}()
	first := <-events
	if first.Type != EventStatus {
		t.Fatalf("expected status, got %+v", first)
	}

	cancel()
	pw.Close()

	for ev := range events {
		if ev.Terminal() {
			t.Errorf("cancelled round must not emit a terminal event, got %+v", ev)
		}
	}
	if len(sess.Batches()) != 0 {
		t.Error("cancelled round must not commit a batch")
	}
}

func TestRoundAvoidsRepeatsFromHistory(t *testing.T) {
	rec := &memRecorder{recent: []string{"https://already-shown"}}

	var captured []string
	capturingAgent := agentFunc(func(ctx context.Context, req agent.Request) (io.ReadCloser, error) {
		captured = req.PromptSections
		return io.NopCloser(strings.NewReader(completeFrames)), nil
	})

	o := newTestOrchestrator(t, capturingAgent, rec)
	drain(o.RunRound(context.Background(), session.NewStore().Create(), RoundRequest{}))

	if !strings.Contains(strings.Join(captured, "\n"), "https://already-shown") {
		t.Error("history URLs missing from prompt")
	}
}

type agentFunc func(ctx context.Context, req agent.Request) (io.ReadCloser, error)

func (f agentFunc) Invoke(ctx context.Context, req agent.Request) (io.ReadCloser, error) {
	return f(ctx, req)
}

func TestRoundAdvancesProfileCheckpoint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "learnings.md")
	if err := os.WriteFile(path, []byte("likes ambient music\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tracker := profile.NewTracker(path, zap.NewNop())
	defer tracker.Close()

	o := New(Config{
		Agent:    scriptedAgent{frames: completeFrames},
		Settings: settings.NewResolver(filepath.Join(dir, "settings.yaml")),
		Tracker:  tracker,
		Logger:   zap.NewNop(),
	})
	sess := session.NewStore().Create()

	drain(o.RunRound(context.Background(), sess, RoundRequest{}))
	if sess.ProfileCheckpoint() != "likes ambient music\n" {
		t.Errorf("checkpoint = %q", sess.ProfileCheckpoint())
	}

	// Unchanged profile on the next round means no delta and no movement.
	drain(o.RunRound(context.Background(), sess, RoundRequest{}))
	if sess.ProfileCheckpoint() != "likes ambient music\n" {
		t.Error("checkpoint drifted without a profile change")
	}
}

func TestRoundUsesCallerSuppliedDelta(t *testing.T) {
	var captured []string
	capturingAgent := agentFunc(func(ctx context.Context, req agent.Request) (io.ReadCloser, error) {
		captured = req.PromptSections
		return io.NopCloser(strings.NewReader(completeFrames)), nil
	})

	o := newTestOrchestrator(t, capturingAgent, nil)
	sess := session.NewStore().Create()

	drain(o.RunRound(context.Background(), sess, RoundRequest{
		ProfileDelta: &profile.Delta{Added: []string{"now into field recordings"}},
	}))

	if !strings.Contains(strings.Join(captured, "\n"), "+ now into field recordings") {
		t.Error("caller-supplied delta missing from prompt")
	}
	if sess.ProfileCheckpoint() != "" {
		t.Error("caller-supplied delta must not move the session checkpoint")
	}
}
