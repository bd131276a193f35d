package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/caredesk/caredesk/internal/genai"
	"github.com/caredesk/caredesk/internal/knowledge"
	"github.com/caredesk/caredesk/internal/models"
	"github.com/caredesk/caredesk/internal/notify"
	"github.com/caredesk/caredesk/internal/orders"
	"github.com/caredesk/caredesk/internal/recommend"
	"github.com/caredesk/caredesk/internal/store"
)

// DefaultGenerateTimeout bounds a single reply generation call.
const DefaultGenerateTimeout = 10 * time.Second

// MaxRecentOrders caps the recent-orders listing offered when a turn names
// no order.
const MaxRecentOrders = 5

// ErrConversationNotFound indicates an operation referenced a conversation
// that does not exist.
var ErrConversationNotFound = errors.New("conversation not found")

// Fixed reply texts used outside the generative path.
const (
	replyEscalation = "Thanks for reaching out. I am escalating this to a human agent for secure assistance."
	replyHandOff    = "I have escalated your request to a human agent. We will follow up shortly."
	fallbackNoOrder = "I'm really sorry for the hiccup. If you share your Order ID or what you need, I'll jump on it right away."
)

// generationPolicy is the system prompt governing tone and length of
// generated replies.
const generationPolicy = "You are a compassionate customer support assistant. " +
	"Tone: very warm, human, and reassuring. Lead with empathy in the first sentence. " +
	"Acknowledge feelings explicitly: e.g., \"I completely understand how frustrating this is\" or \"I'm really sorry for the inconvenience\". " +
	"Keep responses short: 1-3 short sentences max. " +
	"Focus on next steps or concrete info. Avoid blame. Never overpromise. " +
	"If data is missing or sensitive, offer a safe next step or escalate politely."

// Service orchestrates chat turns.
type Service struct {
	st        store.Store
	gen       genai.ClientInterface
	resolver  *orders.Resolver
	retriever *knowledge.Retriever
	notifier  notify.Notifier
}

// NewService constructs the chat service. gen may be nil, in which case every
// turn takes the heuristic reply path.
func NewService(st store.Store, gen genai.ClientInterface, resolver *orders.Resolver, retriever *knowledge.Retriever, notifier notify.Notifier) *Service {
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}
	return &Service{st: st, gen: gen, resolver: resolver, retriever: retriever, notifier: notifier}
}

// ProcessTurn runs one chat turn: resolve context, decide escalation,
// produce a reply, persist the exchange.
func (s *Service) ProcessTurn(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error) {
	if req.UserID != "" {
		s.ensureUser(req.UserID)
	}

	res := s.resolver.Resolve(ctx, req.Message, req.OrderID)

	// Offer a pick-list of the user's recent orders when the turn named no
	// order explicitly. This takes priority over the generative path.
	listing := ""
	if req.OrderID == "" && req.UserID != "" {
		if recent := s.resolver.RecentOrders(req.UserID, MaxRecentOrders); len(recent) > 0 {
			listing = formatOrderListing(recent)
		}
	}

	escalate := ShouldEscalate(req.Message, res.Explicit, res.Order != nil)

	var reply string
	switch {
	case escalate:
		reply = replyEscalation
	case listing != "":
		reply = listing
	default:
		reply = s.generateReply(ctx, req.Message, res.Order)
	}

	conversationID := req.ConversationID
	respEscalated := escalate
	if conversationID == "" {
		conversationID = uuid.NewString()
		conv := models.Conversation{ID: conversationID, UserID: req.UserID, Escalated: escalate, CreatedAt: time.Now().UTC()}
		if err := s.st.CreateConversation(conv); err != nil {
			return models.ChatResponse{}, fmt.Errorf("failed to create conversation: %w", err)
		}
	} else {
		existing, err := s.st.GetConversation(conversationID)
		if err != nil {
			return models.ChatResponse{}, fmt.Errorf("failed to load conversation %s: %w", conversationID, err)
		}
		if existing == nil {
			return models.ChatResponse{}, ErrConversationNotFound
		}
		respEscalated = escalate || existing.Escalated
		if escalate && !existing.Escalated {
			if err := s.st.MarkConversationEscalated(conversationID); err != nil {
				return models.ChatResponse{}, fmt.Errorf("failed to escalate conversation %s: %w", conversationID, err)
			}
		}
	}

	now := time.Now().UTC()
	turn := []models.Message{
		{ID: uuid.NewString(), ConversationID: conversationID, Role: models.RoleUser, Content: req.Message, CreatedAt: now},
		{ID: uuid.NewString(), ConversationID: conversationID, Role: models.RoleAssistant, Content: reply, CreatedAt: now.Add(time.Millisecond)},
	}
	for _, m := range turn {
		if err := s.st.AddMessage(m); err != nil {
			return models.ChatResponse{}, fmt.Errorf("failed to persist message: %w", err)
		}
	}

	if escalate {
		s.alertAsync(conversationID, req.Message)
	}

	suggestions := recommend.CatalogSuggestions(s.st)
	if suggestions == nil {
		suggestions = []models.Recommendation{}
	}
	return models.ChatResponse{
		Reply:          reply,
		Escalated:      respEscalated,
		ConversationID: conversationID,
		Suggestions:    suggestions,
	}, nil
}

// ProactiveConversation creates a conversation seeded with one assistant
// message, used to deliver proactive prompts into the chat UI.
func (s *Service) ProactiveConversation(ctx context.Context, userID, message string) (string, error) {
	s.ensureUser(userID)
	conversationID := uuid.NewString()
	conv := models.Conversation{ID: conversationID, UserID: userID, CreatedAt: time.Now().UTC()}
	if err := s.st.CreateConversation(conv); err != nil {
		return "", fmt.Errorf("failed to create proactive conversation: %w", err)
	}
	m := models.Message{ID: uuid.NewString(), ConversationID: conversationID, Role: models.RoleAssistant, Content: message, CreatedAt: time.Now().UTC()}
	if err := s.st.AddMessage(m); err != nil {
		return "", fmt.Errorf("failed to persist proactive message: %w", err)
	}
	return conversationID, nil
}

// Messages returns a conversation's messages oldest first.
func (s *Service) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	return s.st.GetMessages(conversationID)
}

// EscalateConversation flags an existing conversation for human follow-up
// and appends a hand-off notice. Already escalated conversations stay
// escalated.
func (s *Service) EscalateConversation(ctx context.Context, conversationID string) error {
	conv, err := s.st.GetConversation(conversationID)
	if err != nil {
		return fmt.Errorf("failed to load conversation %s: %w", conversationID, err)
	}
	if conv == nil {
		return ErrConversationNotFound
	}
	if err := s.st.MarkConversationEscalated(conversationID); err != nil {
		return fmt.Errorf("failed to escalate conversation %s: %w", conversationID, err)
	}
	m := models.Message{ID: uuid.NewString(), ConversationID: conversationID, Role: models.RoleAssistant, Content: replyHandOff, CreatedAt: time.Now().UTC()}
	if err := s.st.AddMessage(m); err != nil {
		return fmt.Errorf("failed to persist hand-off notice: %w", err)
	}
	s.alertAsync(conversationID, replyHandOff)
	return nil
}

// generateReply produces the assistant reply through the model, degrading to
// a heuristic reply on any failure. Upstream error text never reaches the
// client.
func (s *Service) generateReply(ctx context.Context, message string, order *models.Order) string {
	if s.gen == nil {
		return heuristicReply(order)
	}

	var parts []string
	if order != nil {
		parts = append(parts, orders.Describe(order))
	}
	if s.retriever != nil {
		if entry := s.retriever.BestMatch(ctx, message); entry != nil {
			parts = append(parts, "Relevant FAQ:\nQ: "+entry.Question+"\nA: "+entry.Answer)
		}
	}
	contextText := strings.Join(parts, "\n\n")
	if contextText == "" {
		contextText = "No order context."
	}
	contextText += upsellText(order)

	gctx, cancel := context.WithTimeout(ctx, DefaultGenerateTimeout)
	defer cancel()
	reply, err := s.gen.GeneratePromptWithContext(gctx, generationPolicy+"\nContext: "+contextText, message)
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			slog.Warn("Service.generateReply: generation failed, using heuristic reply", "error", err)
		}
		return heuristicReply(order)
	}
	return reply
}

// heuristicReply is the deterministic reply used when generation is
// unavailable.
func heuristicReply(order *models.Order) string {
	if order == nil {
		return fallbackNoOrder
	}
	eta := ""
	if order.DeliveryETA != "" {
		eta = " with an estimated delivery on " + order.DeliveryETA
	}
	return fmt.Sprintf("I completely understand how important this is. Order %s is %s%s. I'm here to help with anything else you need.%s",
		order.ID, order.Status, eta, upsellText(order))
}

// upsellText renders heuristic recommendations as a reply suffix.
func upsellText(order *models.Order) string {
	recs := recommend.Heuristic(order)
	if len(recs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\nYou might also like:")
	for _, r := range recs {
		b.WriteString("\n- " + r.Title + ": " + r.Blurb)
	}
	return b.String()
}

// formatOrderListing renders recent orders as a numbered pick-list.
func formatOrderListing(list []models.Order) string {
	var b strings.Builder
	b.WriteString("I found your recent orders:\n")
	for i, o := range list {
		fmt.Fprintf(&b, "%d. %s - %s", i+1, o.ID, o.Status)
		if o.DeliveryETA != "" {
			fmt.Fprintf(&b, " (ETA: %s)", o.DeliveryETA)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nPlease reply with the Order ID you want me to check.")
	return b.String()
}

// ensureUser creates the user record on first contact. Best effort: failures
// are logged and ignored.
func (s *Service) ensureUser(userID string) {
	existing, err := s.st.GetUser(userID)
	if err != nil {
		slog.Warn("Service.ensureUser: lookup failed", "error", err, "userID", userID)
		return
	}
	if existing != nil {
		return
	}
	if err := s.st.SaveUser(models.User{ID: userID, CreatedAt: time.Now().UTC()}); err != nil {
		slog.Warn("Service.ensureUser: insert failed", "error", err, "userID", userID)
	}
}

// alertAsync notifies support staff without blocking the turn.
func (s *Service) alertAsync(conversationID, lastMessage string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.notifier.EscalationAlert(ctx, conversationID, lastMessage); err != nil {
			slog.Warn("Service.alertAsync: escalation alert failed", "error", err, "conversationID", conversationID)
		}
	}()
}
