package push

import (
	"context"
	"errors"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type stubMessageSender struct {
	params *bot.SendMessageParams
	err    error
}

func (s *stubMessageSender) SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	s.params = params
	if s.err != nil {
		return nil, s.err
	}
	return &models.Message{ID: 1}, nil
}

func TestTelegramSendFormatsMessage(t *testing.T) {
	stub := &stubMessageSender{}
	s := &TelegramSender{b: stub}

	res := s.Send(context.Background(), "12345", map[string]string{
		"thing1": "buy milk",
		"thing4": "two bottles",
		"time2":  "2025-01-02 10:00",
	})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if stub.params == nil {
		t.Fatal("expected a message to be sent")
	}
	if stub.params.ChatID != int64(12345) {
		t.Errorf("expected chat id 12345, got %v", stub.params.ChatID)
	}
	want := "buy milk\ntwo bottles\n2025-01-02 10:00"
	if stub.params.Text != want {
		t.Errorf("expected text %q, got %q", want, stub.params.Text)
	}
}

func TestTelegramSendRejectsNonNumericRecipient(t *testing.T) {
	s := &TelegramSender{b: &stubMessageSender{}}
	res := s.Send(context.Background(), "openid-abc", nil)
	if res.Success {
		t.Fatal("expected failure for non-numeric recipient")
	}
}

func TestTelegramSendReportsTransportError(t *testing.T) {
	s := &TelegramSender{b: &stubMessageSender{err: errors.New("telegram down")}}
	res := s.Send(context.Background(), "1", map[string]string{"thing1": "a"})
	if res.Success || res.ErrMsg == "" {
		t.Fatalf("expected transport error result, got %+v", res)
	}
}
