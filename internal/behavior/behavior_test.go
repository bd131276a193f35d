package behavior

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/caredesk/caredesk/internal/models"
	"github.com/caredesk/caredesk/internal/store"
)

const testUserID = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"

type fakeGen struct {
	reply string
	err   error
	calls int
}

func (f *fakeGen) GeneratePromptWithContext(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	return f.reply, f.err
}

func (f *fakeGen) Embed(ctx context.Context, text string) ([]float64, error) {
	return nil, errors.New("not implemented")
}

func addEvents(t *testing.T, st store.Store, events []models.BehaviorEvent) {
	t.Helper()
	for _, e := range events {
		if e.UserID == "" {
			e.UserID = testUserID
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}
		if err := st.AddBehaviorEvent(e); err != nil {
			t.Fatalf("AddBehaviorEvent error: %v", err)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		s    Signals
		want models.Classification
	}{
		{"anxious browser", Signals{CartAdds: 2, CartRemoves: 1, TimeSpentMs: 200000}, models.ClassificationAnxiousBrowser},
		{"cart churn without dwell", Signals{CartAdds: 2, CartRemoves: 1, TimeSpentMs: 100000}, ""},
		{"dwell without churn", Signals{CartAdds: 1, TimeSpentMs: 400000}, ""},
		{"hesitant buyer", Signals{ScrolledBottom: true}, models.ClassificationHesitantBuyer},
		{"scrolled but added to cart", Signals{ScrolledBottom: true, CartAdds: 1}, ""},
		{"anxious wins over hesitant", Signals{CartAdds: 0, CartRemoves: 3, TimeSpentMs: 200000, ScrolledBottom: true}, models.ClassificationAnxiousBrowser},
		{"nothing", Signals{}, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Classify(c.s); got != c.want {
				t.Errorf("Classify(%+v) = %q, want %q", c.s, got, c.want)
			}
		})
	}
}

func TestAggregate(t *testing.T) {
	events := []models.BehaviorEvent{
		{EventType: models.EventCartAdd},
		{EventType: models.EventCartAdd},
		{EventType: models.EventCartRemove},
		{EventType: models.EventTimeSpent, EventPayload: map[string]interface{}{"ms": float64(120000)}},
		{EventType: models.EventTimeSpent, EventPayload: map[string]interface{}{"ms": float64(80000)}},
		{EventType: models.EventScrollDepth, EventPayload: map[string]interface{}{"percent": float64(96)}},
		{EventType: models.EventTimeSpent},
		{EventType: models.EventExitIntent},
	}
	s := Aggregate(events)
	if s.CartAdds != 2 || s.CartRemoves != 1 {
		t.Errorf("cart counts = %d/%d, want 2/1", s.CartAdds, s.CartRemoves)
	}
	if s.TimeSpentMs != 200000 {
		t.Errorf("TimeSpentMs = %v, want 200000", s.TimeSpentMs)
	}
	if !s.ScrolledBottom {
		t.Error("ScrolledBottom = false, want true")
	}
}

func TestAggregateScrollBelowThreshold(t *testing.T) {
	s := Aggregate([]models.BehaviorEvent{
		{EventType: models.EventScrollDepth, EventPayload: map[string]interface{}{"percent": float64(94)}},
	})
	if s.ScrolledBottom {
		t.Error("ScrolledBottom = true for 94 percent, want false")
	}
}

func TestEvaluateAnxiousBrowser(t *testing.T) {
	st := store.NewInMemoryStore()
	defer st.Close()
	addEvents(t, st, []models.BehaviorEvent{
		{EventType: models.EventCartAdd},
		{EventType: models.EventCartAdd},
		{EventType: models.EventCartRemove},
		{EventType: models.EventTimeSpent, EventPayload: map[string]interface{}{"ms": float64(200000)}},
	})
	gen := &fakeGen{reply: "Still deciding? I can help!"}
	engine := NewEngine(st, gen)

	res, err := engine.Evaluate(context.Background(), models.BehaviorEvaluateRequest{UserID: testUserID})
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if !res.ShouldPrompt {
		t.Fatal("expected prompt")
	}
	if res.Classification != models.ClassificationAnxiousBrowser {
		t.Errorf("Classification = %q", res.Classification)
	}
	if res.Prompt != "Still deciding? I can help!" {
		t.Errorf("Prompt = %q", res.Prompt)
	}
	if res.PromptID == "" {
		t.Error("missing prompt id")
	}

	stored, err := st.GetProactivePrompt(res.PromptID)
	if err != nil {
		t.Fatalf("GetProactivePrompt error: %v", err)
	}
	if stored == nil || stored.Engaged != nil {
		t.Fatalf("stored prompt = %+v, want engaged unset", stored)
	}
}

func TestEvaluateHesitantBuyer(t *testing.T) {
	st := store.NewInMemoryStore()
	defer st.Close()
	addEvents(t, st, []models.BehaviorEvent{
		{EventType: models.EventScrollDepth, EventPayload: map[string]interface{}{"percent": float64(96)}},
	})
	engine := NewEngine(st, &fakeGen{reply: "Want a recommendation?"})

	res, err := engine.Evaluate(context.Background(), models.BehaviorEvaluateRequest{UserID: testUserID})
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if !res.ShouldPrompt || res.Classification != models.ClassificationHesitantBuyer {
		t.Fatalf("result = %+v, want Hesitant Buyer prompt", res)
	}
}

func TestEvaluateNoMatchNotForced(t *testing.T) {
	st := store.NewInMemoryStore()
	defer st.Close()
	gen := &fakeGen{reply: "unused"}
	engine := NewEngine(st, gen)

	res, err := engine.Evaluate(context.Background(), models.BehaviorEvaluateRequest{UserID: testUserID})
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if res.ShouldPrompt {
		t.Fatalf("result = %+v, want no prompt", res)
	}
	if gen.calls != 0 {
		t.Errorf("model called %d times, want 0", gen.calls)
	}
}

func TestEvaluateForcedGreetingSkipsModel(t *testing.T) {
	st := store.NewInMemoryStore()
	defer st.Close()
	gen := &fakeGen{reply: "unused"}
	engine := NewEngine(st, gen)

	res, err := engine.Evaluate(context.Background(), models.BehaviorEvaluateRequest{UserID: testUserID, Force: true})
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if !res.ShouldPrompt || res.Classification != models.ClassificationProactiveGreeting {
		t.Fatalf("result = %+v, want forced greeting", res)
	}
	if res.Prompt != forcedGreeting {
		t.Errorf("Prompt = %q, want fixed greeting", res.Prompt)
	}
	if gen.calls != 0 {
		t.Errorf("model called %d times on forced path, want 0", gen.calls)
	}
}

func TestEvaluateModelFailureUsesTemplate(t *testing.T) {
	st := store.NewInMemoryStore()
	defer st.Close()
	addEvents(t, st, []models.BehaviorEvent{
		{EventType: models.EventScrollDepth, EventPayload: map[string]interface{}{"percent": float64(98)}},
	})
	engine := NewEngine(st, &fakeGen{err: errors.New("model down")})

	res, err := engine.Evaluate(context.Background(), models.BehaviorEvaluateRequest{UserID: testUserID})
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if !res.ShouldPrompt {
		t.Fatal("expected prompt despite model failure")
	}
	if res.Prompt != promptTemplates[models.ClassificationHesitantBuyer] {
		t.Errorf("Prompt = %q, want per-label template", res.Prompt)
	}
}

func TestEvaluateDedupWithinWindow(t *testing.T) {
	st := store.NewInMemoryStore()
	defer st.Close()
	addEvents(t, st, []models.BehaviorEvent{
		{EventType: models.EventScrollDepth, EventPayload: map[string]interface{}{"percent": float64(97)}},
	})
	engine := NewEngine(st, &fakeGen{reply: "hello!"})

	first, err := engine.Evaluate(context.Background(), models.BehaviorEvaluateRequest{UserID: testUserID})
	if err != nil {
		t.Fatalf("first Evaluate error: %v", err)
	}
	if !first.ShouldPrompt {
		t.Fatal("expected first evaluation to prompt")
	}

	second, err := engine.Evaluate(context.Background(), models.BehaviorEvaluateRequest{UserID: testUserID})
	if err != nil {
		t.Fatalf("second Evaluate error: %v", err)
	}
	if second.ShouldPrompt {
		t.Fatalf("second evaluation re-prompted: %+v", second)
	}
}

func TestEvaluateForcedBypassesDedup(t *testing.T) {
	st := store.NewInMemoryStore()
	defer st.Close()
	engine := NewEngine(st, &fakeGen{})

	first, err := engine.Evaluate(context.Background(), models.BehaviorEvaluateRequest{UserID: testUserID, Force: true})
	if err != nil {
		t.Fatalf("first Evaluate error: %v", err)
	}
	second, err := engine.Evaluate(context.Background(), models.BehaviorEvaluateRequest{UserID: testUserID, Force: true})
	if err != nil {
		t.Fatalf("second Evaluate error: %v", err)
	}
	if !first.ShouldPrompt || !second.ShouldPrompt {
		t.Fatal("forced evaluations must always prompt")
	}
	if first.PromptID == second.PromptID {
		t.Error("forced evaluations returned the same prompt row")
	}
}

func TestEvaluateIgnoresEventsOutsideWindow(t *testing.T) {
	st := store.NewInMemoryStore()
	defer st.Close()
	old := time.Now().UTC().Add(-WindowDuration - time.Minute)
	addEvents(t, st, []models.BehaviorEvent{
		{EventType: models.EventCartAdd, CreatedAt: old},
		{EventType: models.EventCartAdd, CreatedAt: old},
		{EventType: models.EventCartRemove, CreatedAt: old},
		{EventType: models.EventTimeSpent, EventPayload: map[string]interface{}{"ms": float64(300000)}, CreatedAt: old},
	})
	engine := NewEngine(st, &fakeGen{reply: "unused"})

	res, err := engine.Evaluate(context.Background(), models.BehaviorEvaluateRequest{UserID: testUserID})
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if res.ShouldPrompt {
		t.Fatalf("stale events produced a prompt: %+v", res)
	}
}

func TestLogEventPersistsAndEnsuresUser(t *testing.T) {
	st := store.NewInMemoryStore()
	defer st.Close()
	engine := NewEngine(st, nil)

	engine.LogEvent(context.Background(), models.BehaviorLogRequest{
		UserID:       testUserID,
		SessionID:    "s-1",
		EventType:    "cart_add",
		EventPayload: map[string]interface{}{"sku": "SKU-1"},
	})

	events, err := st.GetBehaviorEventsSince(testUserID, time.Now().UTC().Add(-time.Minute), MaxWindowEvents)
	if err != nil {
		t.Fatalf("GetBehaviorEventsSince error: %v", err)
	}
	if len(events) != 1 || events[0].SessionID != "s-1" {
		t.Fatalf("events = %+v", events)
	}
	u, err := st.GetUser(testUserID)
	if err != nil {
		t.Fatalf("GetUser error: %v", err)
	}
	if u == nil {
		t.Fatal("user not created on first event")
	}
}

func TestRecordEngagement(t *testing.T) {
	st := store.NewInMemoryStore()
	defer st.Close()
	engine := NewEngine(st, nil)
	p := models.ProactivePrompt{ID: "p-1", UserID: testUserID, Classification: models.ClassificationHesitantBuyer, CreatedAt: time.Now().UTC()}
	if err := st.AddProactivePrompt(p); err != nil {
		t.Fatalf("AddProactivePrompt error: %v", err)
	}

	engine.RecordEngagement(context.Background(), "p-1", true)
	got, err := st.GetProactivePrompt("p-1")
	if err != nil {
		t.Fatalf("GetProactivePrompt error: %v", err)
	}
	if got == nil || got.Engaged == nil || !*got.Engaged {
		t.Fatalf("prompt = %+v, want engaged=true", got)
	}

	// Unknown prompt ids are swallowed.
	engine.RecordEngagement(context.Background(), "missing", false)
}
