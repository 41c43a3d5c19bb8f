package notify

import (
	"encoding/json"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"eventbook/internal/events"
	"eventbook/internal/metrics"
)

// Sender is the part of the telegram client the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier forwards lifecycle events to the configured chats.
// It subscribes to the event bus and never blocks the transition path.
type TelegramNotifier struct {
	sender  Sender
	chatIDs []int64
	logger  *zerolog.Logger
}

func NewTelegramNotifier(sender Sender, chatIDs []int64, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, chatIDs: chatIDs, logger: logger}
}

// NewBotAPI dials the telegram API with the given token.
func NewBotAPI(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	return bot, nil
}

// Register subscribes the notifier to every lifecycle event on the bus.
func (n *TelegramNotifier) Register(bus *events.EventBus) {
	bus.SubscribeAll(n.Handle)
}

// Handle formats and fans out one event. Send failures are logged per chat,
// one broken chat must not starve the others.
func (n *TelegramNotifier) Handle(event *events.Event) error {
	var payload events.BookingEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("decode event payload: %w", err)
	}

	text := FormatEventMessage(event.Type, payload)
	for _, chatID := range n.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := n.sender.Send(msg); err != nil {
			n.logger.Warn().Err(err).Int64("chat_id", chatID).Str("event", event.Type).Msg("Telegram send failed")
			metrics.IncNotification("telegram", "failed")
			continue
		}
		metrics.IncNotification("telegram", "ok")
	}
	return nil
}

// FormatEventMessage renders a one-line human summary of a lifecycle event.
func FormatEventMessage(eventType string, p events.BookingEventPayload) string {
	head := fmt.Sprintf("Booking #%d (%s, %s)", p.BookingID, p.VendorName, p.EventDate.Format("2006-01-02"))

	switch eventType {
	case events.EventBookingCreated:
		return fmt.Sprintf("%s: new request from customer %d", head, p.CustomerID)
	case events.EventVendorAccepted:
		return fmt.Sprintf("%s: vendor accepted, waiting for admin", head)
	case events.EventVendorRejected:
		return fmt.Sprintf("%s: vendor rejected the request", head)
	case events.EventAdminApproved:
		return fmt.Sprintf("%s: approved, confirmation code sent to customer", head)
	case events.EventAdminRejected:
		if p.Note != "" {
			return fmt.Sprintf("%s: rejected by admin (%s)", head, p.Note)
		}
		return fmt.Sprintf("%s: rejected by admin", head)
	case events.EventOtpIssued:
		return fmt.Sprintf("%s: confirmation code issued", head)
	case events.EventOtpFailed:
		return fmt.Sprintf("%s: confirmation failed, admin action required", head)
	case events.EventBookingConfirmed:
		return fmt.Sprintf("%s: confirmed", head)
	case events.EventAwaitingReview:
		return fmt.Sprintf("%s: event passed, awaiting customer review", head)
	case events.EventBookingCompleted:
		return fmt.Sprintf("%s: completed", head)
	case events.EventBookingCancelled:
		return fmt.Sprintf("%s: cancelled by %s", head, p.ActorRole)
	default:
		return fmt.Sprintf("%s: %s", head, p.Status)
	}
}
