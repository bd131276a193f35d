package behavior

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/caredesk/caredesk/internal/genai"
	"github.com/caredesk/caredesk/internal/models"
	"github.com/caredesk/caredesk/internal/store"
)

// DefaultGenerateTimeout bounds a single prompt generation call.
const DefaultGenerateTimeout = 10 * time.Second

// forcedGreeting is the fixed prompt used when an evaluation is forced and
// no rule matched.
const forcedGreeting = "I completely understand it can be hard to choose. Would you like help finding the right item or placing an order?"

// promptPolicy is the system prompt for generated proactive messages.
const promptPolicy = "Write a very short, warm, proactive message (<=2 sentences) that reassures and guides next step."

// promptTemplates are the fixed per-label prompts used when the model is
// unavailable for a matched rule.
var promptTemplates = map[models.Classification]string{
	models.ClassificationAnxiousBrowser: "I noticed you have been weighing a few options. Happy to answer any questions so you can decide with confidence.",
	models.ClassificationHesitantBuyer:  "Looks like you have seen everything we offer. Want a quick recommendation to narrow it down?",
}

// Engine evaluates behavior windows and produces proactive prompts.
type Engine struct {
	st  store.Store
	gen genai.ClientInterface
}

// NewEngine constructs the behavior engine. gen may be nil, in which case
// matched rules use the fixed per-label prompts.
func NewEngine(st store.Store, gen genai.ClientInterface) *Engine {
	return &Engine{st: st, gen: gen}
}

// LogEvent appends a behavior event. The write is best effort: storage
// failures are logged and ignored so instrumentation never breaks the UI.
func (e *Engine) LogEvent(ctx context.Context, req models.BehaviorLogRequest) {
	e.ensureUser(req.UserID)
	event := models.BehaviorEvent{
		UserID:       req.UserID,
		SessionID:    req.SessionID,
		EventType:    models.BehaviorEventType(req.EventType),
		EventPayload: req.EventPayload,
		CreatedAt:    time.Now().UTC(),
	}
	if err := e.st.AddBehaviorEvent(event); err != nil {
		slog.Warn("Engine.LogEvent: insert failed", "error", err, "userID", req.UserID, "eventType", req.EventType)
	}
}

// Evaluate classifies the user's recent behavior window and, when warranted,
// generates and persists a proactive prompt. A non-forced evaluation that
// repeats a classification already prompted within the window returns
// shouldPrompt false instead of re-prompting.
func (e *Engine) Evaluate(ctx context.Context, req models.BehaviorEvaluateRequest) (models.EvaluationResult, error) {
	e.ensureUser(req.UserID)

	since := time.Now().UTC().Add(-WindowDuration)
	events, err := e.st.GetBehaviorEventsSince(req.UserID, since, MaxWindowEvents)
	if err != nil {
		return models.EvaluationResult{}, fmt.Errorf("failed to load behavior window: %w", err)
	}

	signals := Aggregate(events)
	classification := Classify(signals)
	if classification == "" && !req.Force {
		return models.EvaluationResult{ShouldPrompt: false}, nil
	}

	forced := classification == ""
	effective := classification
	if forced {
		effective = models.ClassificationProactiveGreeting
	}

	if !forced {
		prior, err := e.st.GetLatestPromptSince(req.UserID, effective, since)
		if err != nil {
			slog.Warn("Engine.Evaluate: dedup lookup failed", "error", err, "userID", req.UserID)
		}
		if prior != nil {
			slog.Debug("Engine.Evaluate: suppressing repeat prompt", "userID", req.UserID, "classification", effective)
			return models.EvaluationResult{ShouldPrompt: false}, nil
		}
	}

	var prompt string
	if forced {
		prompt = forcedGreeting
	} else {
		prompt = e.generatePrompt(ctx, signals, effective)
	}

	row := models.ProactivePrompt{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		SessionID:      req.SessionID,
		Classification: effective,
		Prompt:         prompt,
		CreatedAt:      time.Now().UTC(),
	}
	if err := e.st.AddProactivePrompt(row); err != nil {
		return models.EvaluationResult{}, fmt.Errorf("failed to persist proactive prompt: %w", err)
	}

	return models.EvaluationResult{
		ShouldPrompt:   true,
		PromptID:       row.ID,
		Prompt:         row.Prompt,
		Classification: row.Classification,
	}, nil
}

// RecordEngagement marks a delivered prompt as engaged or ignored. Last
// write wins; ownership is not verified. Storage failures are logged and
// ignored.
func (e *Engine) RecordEngagement(ctx context.Context, promptID string, engaged bool) {
	if err := e.st.SetPromptEngagement(promptID, engaged); err != nil {
		slog.Warn("Engine.RecordEngagement: update failed", "error", err, "promptID", promptID)
	}
}

// generatePrompt asks the model for a prompt tailored to the behavior
// summary, falling back to the fixed per-label template when the model is
// unavailable or fails.
func (e *Engine) generatePrompt(ctx context.Context, signals Signals, classification models.Classification) string {
	if e.gen == nil {
		return promptTemplates[classification]
	}
	summary, err := json.Marshal(map[string]interface{}{
		"adds":           signals.CartAdds,
		"removes":        signals.CartRemoves,
		"timeSpentMs":    signals.TimeSpentMs,
		"scrolledBottom": signals.ScrolledBottom,
		"classification": classification,
	})
	if err != nil {
		return promptTemplates[classification]
	}

	gctx, cancel := context.WithTimeout(ctx, DefaultGenerateTimeout)
	defer cancel()
	message := "Generate a short, friendly proactive message for a customer showing this behavioral context: " + string(summary)
	prompt, err := e.gen.GeneratePromptWithContext(gctx, promptPolicy, message)
	if err != nil || strings.TrimSpace(prompt) == "" {
		if err != nil {
			slog.Warn("Engine.generatePrompt: generation failed, using template", "error", err, "classification", classification)
		}
		return promptTemplates[classification]
	}
	return prompt
}

// ensureUser creates the user record on first contact. Best effort.
func (e *Engine) ensureUser(userID string) {
	existing, err := e.st.GetUser(userID)
	if err != nil {
		slog.Warn("Engine.ensureUser: lookup failed", "error", err, "userID", userID)
		return
	}
	if existing != nil {
		return
	}
	if err := e.st.SaveUser(models.User{ID: userID, CreatedAt: time.Now().UTC()}); err != nil {
		slog.Warn("Engine.ensureUser: insert failed", "error", err, "userID", userID)
	}
}
