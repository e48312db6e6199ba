// Package orchestrator implements the ReAct state machine: it builds
// conversation context, drives the LLM through a recursion-bounded
// loop of reasoning and tool calls, and multiplexes everything into a
// single ordered event.Event stream.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/sentinel/pkg/event"
	"github.com/kadirpekel/sentinel/pkg/llm"
	"github.com/kadirpekel/sentinel/pkg/message"
	"github.com/kadirpekel/sentinel/pkg/prompt"
	"github.com/kadirpekel/sentinel/pkg/session"
	"github.com/kadirpekel/sentinel/pkg/tool"
)

const (
	defaultMaxSteps        = 10
	defaultTemperature     = 0.7
	defaultMaxOutputTokens = 4096
)

// Metrics is the subset of internal/metrics.Metrics the orchestrator
// records against, kept as an interface so tests can assert on calls
// without pulling in a real Prometheus registry. A nil Orchestrator.Metrics
// disables all recording.
type Metrics interface {
	RecordRun(steps int, outcome string)
	RecordToolCall(tool string, d time.Duration)
	RecordToolError(tool, category string)
	RecordLLMError(provider, category string)
}

// RunConfig bounds a single orchestrator run.
type RunConfig struct {
	Language        string
	Persona         string
	ModelName       string
	MaxSteps        int
	Temperature     float64
	MaxOutputTokens int
}

func (c RunConfig) maxSteps() int {
	if c.MaxSteps <= 0 {
		return defaultMaxSteps
	}
	return c.MaxSteps
}

func (c RunConfig) temperature() float64 {
	if c.Temperature <= 0 {
		return defaultTemperature
	}
	return c.Temperature
}

func (c RunConfig) maxOutputTokens() int {
	if c.MaxOutputTokens <= 0 {
		return defaultMaxOutputTokens
	}
	return c.MaxOutputTokens
}

// Orchestrator wires a session store, an LLM client, and a tool
// registry into the ReAct loop described by Run.
type Orchestrator struct {
	Sessions session.Store
	LLM      llm.Client
	Tools    *tool.Registry

	// Persona and Description feed BuildSystemPrompt; callers needing
	// custom wording can set Prompt instead.
	Persona     string
	Description string
	Prompt      func(tools []tool.Descriptor, language, persona, description string, now time.Time) string

	// Metrics and ProviderName are optional; ProviderName labels
	// RecordLLMError calls and is meaningless if Metrics is nil.
	Metrics      Metrics
	ProviderName string
}

func (o *Orchestrator) buildPrompt(cfg RunConfig, now time.Time) string {
	fn := o.Prompt
	if fn == nil {
		fn = prompt.BuildSystemPrompt
	}
	persona := o.Persona
	if cfg.Persona != "" {
		persona = cfg.Persona
	}
	return fn(o.Tools.Descriptors(), cfg.Language, persona, o.Description, now)
}

// pendingToolCall pairs a ToolCall with the raw arguments the LLM
// streamed for it, prior to Registry-level normalization.
type pendingToolCall struct {
	id   string
	name string
	args string
}

// Run executes the INIT -> LLM_STEP -> ROUTE -> TOOL_DISPATCH ->
// TOOL_APPEND -> COMMIT -> DONE state machine and returns a channel
// of ordered events. The channel is closed when the run reaches a
// terminal state; on cancellation it closes without a Done event.
func (o *Orchestrator) Run(ctx context.Context, question, sessionID string, cfg RunConfig) <-chan event.Event {
	out := make(chan event.Event)
	go o.run(ctx, question, sessionID, cfg, out)
	return out
}

func (o *Orchestrator) run(ctx context.Context, question, sessionID string, cfg RunConfig, out chan<- event.Event) {
	defer close(out)

	outcome := "cancelled"
	step := 0
	defer func() { o.recordRun(step, outcome) }()

	// INIT
	history, err := o.Sessions.GetMessages(ctx, sessionID)
	if err != nil {
		outcome = "storage_error"
		o.emitErrorAndDone(ctx, out, sessionID, event.CategoryStorage, err.Error())
		return
	}

	messages := make([]message.Message, 0, len(history)+2)
	messages = append(messages, message.System(o.buildPrompt(cfg, time.Now())))
	messages = append(messages, history...)
	messages = append(messages, message.User(question))

	var finalTextParts []string

	for {
		if ctx.Err() != nil {
			return
		}

		// LLM_STEP
		textParts, pending, finish, llmErr := o.runLLMStep(ctx, messages, cfg, out)
		if llmErr != nil {
			outcome = "llm_error"
			if o.Metrics != nil {
				o.Metrics.RecordLLMError(o.ProviderName, string(llmErr.Category))
			}
			o.emitErrorAndDone(ctx, out, sessionID, llmErr.Category, llmErr.Message)
			return
		}
		if ctx.Err() != nil {
			return
		}

		// ROUTE
		if finish != llm.FinishToolCalls || len(pending) == 0 {
			finalTextParts = textParts
			for _, frag := range textParts {
				if frag == "" {
					continue
				}
				if !emit(ctx, out, event.Token(frag)) {
					return
				}
			}
			break
		}

		// TOOL_DISPATCH + TOOL_APPEND
		assistantCalls, results, dispatchErr := o.dispatchTools(ctx, pending, out)
		if dispatchErr != nil {
			var panicErr *toolPanicError
			var unknownErr *unknownToolError
			switch {
			case errors.As(dispatchErr, &panicErr):
				outcome = "internal_error"
				o.emitErrorAndDone(ctx, out, sessionID, event.CategoryInternal, panicErr.Error())
			case errors.As(dispatchErr, &unknownErr):
				outcome = "internal_error"
				o.emitErrorAndDone(ctx, out, sessionID, event.CategoryInternal, unknownErr.Error())
			}
			return // cancellation (or a reported invariant violation) ends the run
		}
		if ctx.Err() != nil {
			return
		}
		messages = append(messages, message.AssistantToolCalls("", assistantCalls))
		messages = append(messages, results...)

		step++
		slog.Info("orchestrator step completed", "step", step, "tool_calls", len(pending))

		// This cycle's Thought/Action/Observation sequence has already
		// been fully dispatched and appended; the limit only forecloses
		// the next LLM_STEP, not the one just completed.
		if step >= cfg.maxSteps() {
			outcome = "recursion_limit"
			o.emitErrorAndDone(ctx, out, sessionID, event.CategoryRecursionLimit,
				fmt.Sprintf("exceeded max_steps (%d) without a final answer", cfg.maxSteps()))
			return
		}
	}

	if ctx.Err() != nil {
		return
	}

	// COMMIT
	finalText := strings.Join(finalTextParts, "")
	if err := o.Sessions.Append(ctx, sessionID, message.User(question), message.Assistant(finalText)); err != nil {
		outcome = "storage_error"
		o.emitErrorAndDone(ctx, out, sessionID, event.CategoryStorage, err.Error())
		return
	}

	outcome = "done"
	out <- event.Done(sessionID)
}

func (o *Orchestrator) recordRun(steps int, outcome string) {
	if o.Metrics != nil {
		o.Metrics.RecordRun(steps, outcome)
	}
}

// runLLMStep opens one LLM stream and drains it, buffering text until
// the End chunk reveals whether this turn is final. It returns the
// buffered text fragments (meaningful only when finish == FinishStop),
// the assembled tool calls (meaningful when finish == FinishToolCalls),
// and the finish reason.
func (o *Orchestrator) runLLMStep(ctx context.Context, messages []message.Message, cfg RunConfig, out chan<- event.Event) ([]string, []pendingToolCall, llm.FinishReason, *llm.Error) {
	if ctx.Err() != nil {
		return nil, nil, "", nil
	}

	ch, err := o.LLM.Stream(ctx, messages, o.Tools.Descriptors(), llm.RunConfig{
		Model:           cfg.ModelName,
		Temperature:     cfg.temperature(),
		MaxOutputTokens: cfg.maxOutputTokens(),
	})
	if err != nil {
		if le, ok := err.(*llm.Error); ok {
			return nil, nil, "", le
		}
		return nil, nil, "", &llm.Error{Category: llm.CategoryTransport, Message: err.Error(), Err: err}
	}

	var textBuf []string
	order := []int{}
	byIndex := map[int]*pendingToolCall{}
	nextIndex := 0
	idToIndex := map[string]int{}

	finish := llm.FinishStop

	for c := range ch {
		if ctx.Err() != nil {
			return nil, nil, "", nil
		}

		switch c.Kind {
		case llm.ChunkText:
			textBuf = append(textBuf, c.Text)

		case llm.ChunkToolCallDelta:
			idx, ok := idToIndex[c.ToolCallID]
			if !ok {
				idx = nextIndex
				nextIndex++
				idToIndex[c.ToolCallID] = idx
				order = append(order, idx)
				byIndex[idx] = &pendingToolCall{id: c.ToolCallID}
			}
			p := byIndex[idx]
			if c.ToolCallName != "" {
				p.name = c.ToolCallName
			}
			p.args += c.ArgsFragment

		case llm.ChunkEnd:
			if c.Finish == llm.FinishError {
				if le, ok := c.Err.(*llm.Error); ok {
					return nil, nil, "", le
				}
				return nil, nil, "", &llm.Error{Category: llm.CategoryTransport, Message: "stream ended in error"}
			}
			finish = c.Finish
		}
	}

	if finish == llm.FinishToolCalls {
		pending := make([]pendingToolCall, 0, len(order))
		for _, idx := range order {
			p := byIndex[idx]
			if p.id == "" {
				p.id = "call_" + uuid.NewString()
			}
			pending = append(pending, *p)
		}
		return nil, pending, finish, nil
	}

	return textBuf, nil, finish, nil
}

// dispatchTools emits Thought/Action/Observation events for a single
// LLM turn's tool calls, invoking every tool sequentially in the LLM's
// order. The think tool emits a Thought instead of an
// Action/Observation pair, but its result is still appended. A tool panic
// is recovered and surfaces as a toolPanicError to the caller, which
// terminates the run with an internal-category Error event rather
// than crashing the request goroutine.
func (o *Orchestrator) dispatchTools(ctx context.Context, pending []pendingToolCall, out chan<- event.Event) ([]message.ToolCall, []message.Message, error) {
	assistantCalls := make([]message.ToolCall, 0, len(pending))
	results := make([]message.Message, 0, len(pending))

	for _, p := range pending {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}

		// An unknown tool name is an orchestrator invariant violation
		// (the LLM was only ever offered registered tools), not an
		// ordinary tool failure, so it terminates the run rather than
		// feeding an error Observation back into the loop.
		t, ok := o.Tools.Get(p.name)
		if !ok {
			return nil, nil, &unknownToolError{tool: p.name}
		}

		// Displayed Action arguments use the same normalization Invoke
		// applies (map / JSON string / bare-string-to-sole-field), so a
		// bare-string call shows its bound arguments rather than {}.
		args, err := tool.NormalizeArguments(t.Descriptor(), p.args)
		if err != nil {
			args = map[string]any{}
		}
		assistantCalls = append(assistantCalls, message.ToolCall{ID: p.id, Name: p.name, Arguments: args})

		if p.name == "think" {
			thought, _ := args["thought"].(string)
			if !emit(ctx, out, event.Thought(thought)) {
				return nil, nil, ctx.Err()
			}
			result, panicErr := o.safeInvoke(ctx, p.name, p.args)
			if panicErr != nil {
				return nil, nil, panicErr
			}
			results = append(results, message.ToolResult(p.id, result))
			continue
		}

		if !emit(ctx, out, event.Action(p.id, p.name, args)) {
			return nil, nil, ctx.Err()
		}

		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}

		result, panicErr := o.safeInvoke(ctx, p.name, p.args)
		if panicErr != nil {
			return nil, nil, panicErr
		}

		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}

		if !emit(ctx, out, event.Observation(p.id, p.name, result)) {
			return nil, nil, ctx.Err()
		}
		results = append(results, message.ToolResult(p.id, result))
	}

	return assistantCalls, results, nil
}

// toolPanicError marks a recovered tool panic, distinguishing it from
// an ordinary ctx.Err() cancellation so the caller knows to emit an
// internal-category Error event instead of silently stopping.
type toolPanicError struct {
	tool  string
	value any
}

func (e *toolPanicError) Error() string {
	return fmt.Sprintf("tool %q panicked: %v", e.tool, e.value)
}

// unknownToolError marks an LLM-requested tool call naming a tool the
// registry never offered it, the other invariant violation §7 calls
// out as internal rather than an ordinary fed-back tool failure.
type unknownToolError struct {
	tool string
}

func (e *unknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %q", e.tool)
}

// safeInvoke calls the named tool, converting a ToolError (or any
// other invocation error) into the stable Observation body and
// recovering a panic into a toolPanicError.
func (o *Orchestrator) safeInvoke(ctx context.Context, name string, rawArgs string) (result string, panicErr error) {
	defer func() {
		if r := recover(); r != nil {
			panicErr = &toolPanicError{tool: name, value: r}
		}
	}()

	start := time.Now()
	out, err := o.Tools.Invoke(ctx, name, rawArgs)
	if o.Metrics != nil {
		o.Metrics.RecordToolCall(name, time.Since(start))
	}
	if err != nil {
		category := string(tool.ErrorExecution)
		var toolErr *tool.ToolError
		if errors.As(err, &toolErr) {
			category = string(toolErr.Category)
		}
		if o.Metrics != nil {
			o.Metrics.RecordToolError(name, category)
		}
		slog.Warn("tool invocation failed", "tool", name, "category", category, "error", err)
		return tool.FormatError(err), nil
	}
	return out, nil
}

func (o *Orchestrator) emitErrorAndDone(ctx context.Context, out chan<- event.Event, sessionID string, category event.Category, detail string) {
	if !emit(ctx, out, event.Error(category, detail)) {
		return
	}
	emit(ctx, out, event.Done(sessionID))
}

// emit delivers ev unless ctx is cancelled first.
func emit(ctx context.Context, out chan<- event.Event, ev event.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
