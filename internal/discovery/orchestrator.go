package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/serendipitylabs/serendipity/internal/agent"
	"github.com/serendipitylabs/serendipity/internal/profile"
	"github.com/serendipitylabs/serendipity/internal/session"
	"github.com/serendipitylabs/serendipity/internal/settings"
)

// ContextProvider supplies the prompt context sections and the toolset for a
// round. Warnings are non-fatal source failures worth logging.
type ContextProvider interface {
	Sections(ctx context.Context) (sections []string, warnings []string)
	Tools() []agent.ToolDef
	Executor() agent.ToolExecutor
}

// Recorder persists committed batches and answers what was recently shown.
type Recorder interface {
	RecordBatch(ctx context.Context, sessionID string, b session.Batch) error
	RecentURLs(ctx context.Context, limit int) ([]string, error)
}

// FeedbackEntry is one rating folded into the round before the prompt is
// built.
type FeedbackEntry struct {
	Key    string `json:"key"`
	Rating int    `json:"rating"`
}

// RoundRequest parameterizes one round. Zero Count means the configured
// round size; empty Approaches means all enabled ones. A caller-supplied
// ProfileDelta is used verbatim; otherwise the delta is computed against the
// session's checkpoint.
type RoundRequest struct {
	Approaches   []string        `json:"approaches,omitempty"`
	Count        int             `json:"count,omitempty"`
	Feedback     []FeedbackEntry `json:"feedback,omitempty"`
	ProfileDelta *profile.Delta  `json:"profile_delta,omitempty"`
	Directives   string          `json:"directives,omitempty"`
}

// Config wires an Orchestrator. Agent, Settings and Logger are required;
// Tracker, Context and Recorder are optional and degrade to "no profile
// delta", "no extra context" and "no persistence".
type Config struct {
	Agent    agent.Agent
	Settings *settings.Resolver
	Tracker  *profile.Tracker
	Context  ContextProvider
	Recorder Recorder
	Logger   *zap.Logger
}

// Orchestrator runs discovery rounds end to end.
type Orchestrator struct {
	agent    agent.Agent
	settings *settings.Resolver
	tracker  *profile.Tracker
	context  ContextProvider
	recorder Recorder
	logger   *zap.Logger
}

func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		agent:    cfg.Agent,
		settings: cfg.Settings,
		tracker:  cfg.Tracker,
		context:  cfg.Context,
		recorder: cfg.Recorder,
		logger:   cfg.Logger,
	}
}

// RunRound starts one round and returns its event stream. The channel closes
// after exactly one terminal event, or without one when ctx is cancelled; a
// cancelled round never commits a batch.
func (o *Orchestrator) RunRound(ctx context.Context, sess *session.Session, req RoundRequest) <-chan Event {
	events := make(chan Event, 16)
	go o.runRound(ctx, sess, req, events)
	return events
}

func (o *Orchestrator) runRound(ctx context.Context, sess *session.Session, req RoundRequest, events chan<- Event) {
	defer close(events)

	for _, fb := range req.Feedback {
		if err := sess.RecordFeedback(fb.Key, fb.Rating); err != nil {
			o.logger.Warn("skipping invalid feedback entry", zap.String("key", fb.Key), zap.Error(err))
		}
	}

	eff, warnings := o.settings.Resolve()
	for _, w := range warnings {
		o.logger.Warn("settings warning", zap.String("warning", w))
	}

	count := req.Count
	if count <= 0 {
		count = eff.RoundSize
	}

	var currentProfile string
	var delta *profile.Delta
	advanceCheckpoint := false
	switch {
	case req.ProfileDelta != nil:
		// The caller owns profile versioning for this round; don't touch
		// the session checkpoint.
		delta = req.ProfileDelta
	case o.tracker != nil:
		currentProfile = o.tracker.Current()
		delta = profile.Diff(sess.ProfileCheckpoint(), currentProfile)
		advanceCheckpoint = delta != nil
	}

	var (
		contextSections []string
		tools           []agent.ToolDef
		executor        agent.ToolExecutor
	)
	if o.context != nil {
		var warns []string
		contextSections, warns = o.context.Sections(ctx)
		for _, w := range warns {
			o.logger.Warn("context source warning", zap.String("warning", w))
		}
		tools = o.context.Tools()
		executor = o.context.Executor()
	}

	sections := buildPromptSections(promptInput{
		Effective:  eff,
		Approaches: req.Approaches,
		Count:      count,
		Delta:      delta,
		Feedback:   sess.Feedback(),
		Context:    contextSections,
		Recent:     o.recentURLs(ctx, sess),
		Directives: req.Directives,
	})

	stream, err := o.agent.Invoke(ctx, agent.Request{
		Model:          eff.Model,
		ThinkingBudget: eff.ThinkingBudget,
		PromptSections: sections,
		Tools:          tools,
		Executor:       executor,
	})
	if err != nil {
		emit(ctx, events, errorEvent(fmt.Sprintf("starting round: %v", err)))
		return
	}
	defer stream.Close()

	complete, err := o.relay(ctx, stream, events)
	if err != nil {
		if ctx.Err() != nil {
			// Aborted round: stop relaying, commit nothing.
			return
		}
		o.logger.Warn("round failed", zap.String("session", sess.ID), zap.Error(err))
		emit(ctx, events, errorEvent(err.Error()))
		return
	}

	batch := sess.AppendBatch(session.Batch{
		Title:           complete.BatchTitle,
		Recommendations: complete.Recommendations,
		Pairings:        complete.Pairings,
	})
	if advanceCheckpoint {
		sess.AdvanceProfileCheckpoint(currentProfile)
	}
	if o.recorder != nil {
		if err := o.recorder.RecordBatch(ctx, sess.ID, batch); err != nil {
			o.logger.Warn("history write failed", zap.Int64("batch", batch.ID), zap.Error(err))
		}
	}
	emit(ctx, events, Event{Type: EventComplete, Complete: complete})
}

// recentURLs merges persisted history with this session's own batches so the
// prompt can steer away from repeats.
func (o *Orchestrator) recentURLs(ctx context.Context, sess *session.Session) []string {
	seen := make(map[string]bool)
	var urls []string
	add := func(url string) {
		if url != "" && !seen[url] {
			seen[url] = true
			urls = append(urls, url)
		}
	}

	if o.recorder != nil {
		recent, err := o.recorder.RecentURLs(ctx, 50)
		if err != nil {
			o.logger.Warn("history read failed", zap.Error(err))
		}
		for _, url := range recent {
			add(url)
		}
	}
	for _, b := range sess.Batches() {
		for _, rec := range b.Recommendations {
			add(rec.URL)
		}
	}
	return urls
}

// relay consumes the agent stream and forwards progress events. It returns
// the validated complete payload, or an error that the caller turns into the
// terminal error event. A malformed progress payload drops that one event;
// a malformed terminal payload fails the round.
func (o *Orchestrator) relay(ctx context.Context, r io.Reader, events chan<- Event) (*CompletePayload, error) {
	scanner := newBlockScanner(r)
	var resultText string
	var haveResult bool

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		raw, err := scanner.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, errMalformedBlock) {
			o.logger.Warn("dropping malformed event block", zap.Error(err))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading agent stream: %w", err)
		}

		switch raw.Name {
		case EventStatus:
			var p StatusPayload
			if err := json.Unmarshal(raw.Data, &p); err != nil {
				o.logger.Warn("dropping undecodable status event", zap.Error(err))
				continue
			}
			if !emit(ctx, events, Event{Type: EventStatus, Status: &p}) {
				return nil, ctx.Err()
			}

		case EventToolUse:
			var p ToolUsePayload
			if err := json.Unmarshal(raw.Data, &p); err != nil {
				o.logger.Warn("dropping undecodable tool_use event", zap.Error(err))
				continue
			}
			if !emit(ctx, events, Event{Type: EventToolUse, ToolUse: &p}) {
				return nil, ctx.Err()
			}

		case eventResult:
			var p struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(raw.Data, &p); err != nil {
				return nil, fmt.Errorf("malformed result payload: %w", err)
			}
			resultText, haveResult = p.Text, true

		case EventComplete:
			var p CompletePayload
			if err := json.Unmarshal(raw.Data, &p); err != nil {
				return nil, fmt.Errorf("malformed complete payload: %w", err)
			}
			if dropped := validateComplete(&p); dropped > 0 {
				o.logger.Warn("dropped incomplete recommendations", zap.Int("count", dropped))
			}
			p.Success = true
			return &p, nil

		case EventError:
			var p ErrorPayload
			if err := json.Unmarshal(raw.Data, &p); err != nil || p.Error == "" {
				return nil, errors.New("agent reported an error")
			}
			return nil, errors.New(p.Error)

		default:
			o.logger.Debug("ignoring unknown event", zap.String("event", raw.Name))
		}
	}

	if haveResult {
		p, dropped, err := parseResultText(resultText)
		if err != nil {
			return nil, fmt.Errorf("agent result unusable: %w", err)
		}
		if dropped > 0 {
			o.logger.Warn("dropped incomplete recommendations", zap.Int("count", dropped))
		}
		return p, nil
	}
	return nil, errors.New("agent stream ended without a result")
}

func emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
