package bot

import (
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"sync"

	"stockbridge/internal/domain"

	tele "gopkg.in/telebot.v3"
)

const defaultMovePct = 3.0

type messageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// AlertDispatcher broadcasts significant price moves to subscribed chats.
type AlertDispatcher struct {
	sender  messageSender
	movePct float64

	mu          sync.RWMutex
	subscribers map[int64]struct{}
	alerted     map[string]string
}

func NewAlertDispatcher(sender messageSender, movePct float64) *AlertDispatcher {
	if movePct <= 0 {
		movePct = defaultMovePct
	}
	return &AlertDispatcher{
		sender:      sender,
		movePct:     movePct,
		subscribers: make(map[int64]struct{}),
		alerted:     make(map[string]string),
	}
}

func (d *AlertDispatcher) Subscribe(chatID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.subscribers[chatID]; exists {
		return false
	}
	d.subscribers[chatID] = struct{}{}
	return true
}

func (d *AlertDispatcher) Unsubscribe(chatID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.subscribers[chatID]; !exists {
		return false
	}
	delete(d.subscribers, chatID)
	return true
}

func (d *AlertDispatcher) IsSubscribed(chatID int64) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, exists := d.subscribers[chatID]
	return exists
}

func (d *AlertDispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}

// Publish broadcasts quotes whose day change crosses the move threshold.
// Quote batches come straight from the poller, so delivery failures are
// logged rather than returned.
func (d *AlertDispatcher) Publish(quotes []*domain.Quote) {
	if d == nil || d.sender == nil || len(quotes) == 0 {
		return
	}

	chatIDs := d.snapshotSubscribers()
	if len(chatIDs) == 0 {
		return
	}

	moved := d.significantMoves(quotes)
	if len(moved) == 0 {
		return
	}

	msg := formatAlertMessage(moved)
	for _, chatID := range chatIDs {
		if _, err := d.sender.Send(&tele.Chat{ID: chatID}, msg); err != nil {
			log.Printf("alert delivery to chat %d failed: %v", chatID, err)
		}
	}
}

// significantMoves keeps at most one alert per code per trading day.
func (d *AlertDispatcher) significantMoves(quotes []*domain.Quote) []*domain.Quote {
	d.mu.Lock()
	defer d.mu.Unlock()

	var moved []*domain.Quote
	for _, q := range quotes {
		if q == nil || math.Abs(q.ChangePct) < d.movePct {
			continue
		}
		day := q.Timestamp.Format(domain.DateLayout)
		if d.alerted[q.Code] == day {
			continue
		}
		d.alerted[q.Code] = day
		moved = append(moved, q)
	}
	return moved
}

func (d *AlertDispatcher) snapshotSubscribers() []int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()

	chatIDs := make([]int64, 0, len(d.subscribers))
	for chatID := range d.subscribers {
		chatIDs = append(chatIDs, chatID)
	}
	sort.Slice(chatIDs, func(i, j int) bool { return chatIDs[i] < chatIDs[j] })
	return chatIDs
}

func parseAlertMode(args []string) (string, error) {
	if len(args) == 0 {
		return "status", nil
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "on":
		return "on", nil
	case "off":
		return "off", nil
	case "status":
		return "status", nil
	default:
		return "", fmt.Errorf("invalid mode")
	}
}

func formatAlertMessage(quotes []*domain.Quote) string {
	lines := make([]string, 0, len(quotes)+1)
	lines = append(lines, "Price move alert:")
	for _, q := range quotes {
		lines = append(lines, fmt.Sprintf("%s %+.2f%% at %.2f", q.Code, q.ChangePct, q.Price))
	}
	return strings.Join(lines, "\n")
}
