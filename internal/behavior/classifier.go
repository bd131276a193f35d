// Package behavior implements behavioral classification and the proactive
// prompt engine: event ingestion, windowed rule evaluation, prompt
// generation and engagement tracking.
package behavior

import (
	"time"

	"github.com/caredesk/caredesk/internal/models"
)

// Classification window bounds.
const (
	// WindowDuration is how far back the classifier looks.
	WindowDuration = 10 * time.Minute
	// MaxWindowEvents caps the number of events considered per evaluation.
	MaxWindowEvents = 200
)

// Rule thresholds.
const (
	anxiousCartChanges = 3
	anxiousTimeSpentMs = 3 * 60 * 1000
	hesitantScrollPct  = 95
)

// Signals is the aggregate view of a user's event window.
type Signals struct {
	CartAdds       int
	CartRemoves    int
	TimeSpentMs    float64
	ScrolledBottom bool
}

// Aggregate folds a window of events into classification signals.
func Aggregate(events []models.BehaviorEvent) Signals {
	var s Signals
	for _, e := range events {
		switch e.EventType {
		case models.EventCartAdd:
			s.CartAdds++
		case models.EventCartRemove:
			s.CartRemoves++
		case models.EventTimeSpent:
			s.TimeSpentMs += payloadNumber(e.EventPayload, "ms")
		case models.EventScrollDepth:
			if payloadNumber(e.EventPayload, "percent") >= hesitantScrollPct {
				s.ScrolledBottom = true
			}
		}
	}
	return s
}

// Classify maps signals to a classification label. The rules are ordered:
// the anxious-browser rule wins over the hesitant-buyer rule. An empty label
// means no rule matched.
func Classify(s Signals) models.Classification {
	if s.CartAdds+s.CartRemoves >= anxiousCartChanges && s.TimeSpentMs >= anxiousTimeSpentMs {
		return models.ClassificationAnxiousBrowser
	}
	if s.ScrolledBottom && s.CartAdds == 0 {
		return models.ClassificationHesitantBuyer
	}
	return ""
}

// payloadNumber reads a numeric payload field; absent or non-numeric fields
// count as zero.
func payloadNumber(payload map[string]interface{}, key string) float64 {
	if payload == nil {
		return 0
	}
	if v, ok := payload[key].(float64); ok {
		return v
	}
	return 0
}
