package bot

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"stockbridge/internal/domain"

	tele "gopkg.in/telebot.v3"
)

func TestParseAlertMode(t *testing.T) {
	mode, err := parseAlertMode(nil)
	if err != nil || mode != "status" {
		t.Fatalf("expected default status mode, got mode=%q err=%v", mode, err)
	}

	mode, err = parseAlertMode([]string{"on"})
	if err != nil || mode != "on" {
		t.Fatalf("expected on mode, got mode=%q err=%v", mode, err)
	}

	mode, err = parseAlertMode([]string{"OFF"})
	if err != nil || mode != "off" {
		t.Fatalf("expected off mode, got mode=%q err=%v", mode, err)
	}

	if _, err := parseAlertMode([]string{"nope"}); err == nil {
		t.Fatal("expected invalid mode error")
	}
}

func TestAlertDispatcherPublish(t *testing.T) {
	sender := &fakeSender{}
	dispatcher := NewAlertDispatcher(sender, 3.0)

	if !dispatcher.Subscribe(10) {
		t.Fatal("expected initial subscribe to return true")
	}
	if !dispatcher.Subscribe(20) {
		t.Fatal("expected initial subscribe to return true")
	}
	if dispatcher.Subscribe(10) {
		t.Fatal("expected duplicate subscribe to return false")
	}

	quotes := []*domain.Quote{
		{Code: "2330", Price: 612, ChangePct: 4.2, Timestamp: time.Unix(0, 0).UTC()},
		{Code: "2317", Price: 104.5, ChangePct: 1.0, Timestamp: time.Unix(0, 0).UTC()},
	}

	dispatcher.Publish(quotes)
	if len(sender.messages[10]) != 1 || len(sender.messages[20]) != 1 {
		t.Fatalf("expected one message per subscriber, got %+v", sender.messages)
	}
	if !strings.Contains(sender.messages[10][0], "2330 +4.20% at 612.00") {
		t.Fatalf("unexpected alert body: %s", sender.messages[10][0])
	}
	if strings.Contains(sender.messages[10][0], "2317") {
		t.Fatalf("expected small move to be filtered, got: %s", sender.messages[10][0])
	}
}

func TestAlertDispatcherDedupesSameDay(t *testing.T) {
	sender := &fakeSender{}
	dispatcher := NewAlertDispatcher(sender, 3.0)
	dispatcher.Subscribe(10)

	day := time.Unix(0, 0).UTC()
	quotes := []*domain.Quote{{Code: "2330", Price: 612, ChangePct: 4.2, Timestamp: day}}

	dispatcher.Publish(quotes)
	dispatcher.Publish(quotes)
	if len(sender.messages[10]) != 1 {
		t.Fatalf("expected a single alert for repeated moves, got %d", len(sender.messages[10]))
	}

	next := []*domain.Quote{{Code: "2330", Price: 640, ChangePct: 4.6, Timestamp: day.AddDate(0, 0, 1)}}
	dispatcher.Publish(next)
	if len(sender.messages[10]) != 2 {
		t.Fatalf("expected a fresh alert on the next trading day, got %d", len(sender.messages[10]))
	}
}

func TestAlertDispatcherDefaultThreshold(t *testing.T) {
	sender := &fakeSender{}
	dispatcher := NewAlertDispatcher(sender, 0)
	dispatcher.Subscribe(10)

	dispatcher.Publish([]*domain.Quote{
		{Code: "2317", Price: 104.5, ChangePct: 2.9, Timestamp: time.Unix(0, 0).UTC()},
	})
	if len(sender.messages) != 0 {
		t.Fatalf("expected sub-threshold move to be dropped, got %+v", sender.messages)
	}

	dispatcher.Publish([]*domain.Quote{
		{Code: "2330", Price: 612, ChangePct: -3.1, Timestamp: time.Unix(0, 0).UTC()},
	})
	if len(sender.messages[10]) != 1 {
		t.Fatalf("expected default threshold alert, got %+v", sender.messages)
	}
}

func TestAlertDispatcherUnsubscribe(t *testing.T) {
	sender := &fakeSender{}
	dispatcher := NewAlertDispatcher(sender, 3.0)

	dispatcher.Subscribe(10)
	if !dispatcher.Unsubscribe(10) {
		t.Fatal("expected unsubscribe to return true")
	}
	if dispatcher.Unsubscribe(10) {
		t.Fatal("expected second unsubscribe to return false")
	}

	dispatcher.Publish([]*domain.Quote{
		{Code: "2330", Price: 612, ChangePct: 4.2, Timestamp: time.Now().UTC()},
	})
	if len(sender.messages) != 0 {
		t.Fatalf("expected zero outgoing messages, got %+v", sender.messages)
	}
}

type fakeSender struct {
	messages map[int64][]string
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	if f.messages == nil {
		f.messages = make(map[int64][]string)
	}

	chat, ok := to.(*tele.Chat)
	if !ok {
		return nil, fmt.Errorf("unexpected recipient type %T", to)
	}
	f.messages[chat.ID] = append(f.messages[chat.ID], fmt.Sprint(what))
	return &tele.Message{}, nil
}
