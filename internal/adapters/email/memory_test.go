package email

import (
	"context"
	"errors"
	"testing"
)

func TestMemory_KeepsMessages(t *testing.T) {
	m := NewMemory()
	r, err := m.Send(context.Background(), Message{To: "sam@gym.test", Subject: "Booked", Kind: "registered"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if r.ProviderID != "local-1" {
		t.Errorf("ProviderID = %q, want local-1", r.ProviderID)
	}
	got := m.Messages()
	if len(got) != 1 || got[0].Subject != "Booked" {
		t.Fatalf("Messages = %+v", got)
	}
	got[0].Subject = "changed"
	if m.Messages()[0].Subject != "Booked" {
		t.Error("Messages must return a copy")
	}
}

func TestResend_Request(t *testing.T) {
	s := NewResend("re_test", "Gym <desk@gym.test>", "front@gym.test")

	req, err := s.request(Message{To: " sam@gym.test ", Subject: "Booked", HTML: "<p>hi</p>", Kind: "registered"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if req.From != "Gym <desk@gym.test>" || req.ReplyTo != "front@gym.test" {
		t.Errorf("defaults not applied: %+v", req)
	}
	if len(req.To) != 1 || req.To[0] != "sam@gym.test" {
		t.Errorf("To = %v", req.To)
	}
	if len(req.Tags) != 1 || req.Tags[0].Value != "registered" {
		t.Errorf("Tags = %+v", req.Tags)
	}

	req, _ = s.request(Message{To: "sam@gym.test", From: "Coach <coach@gym.test>", ReplyTo: "coach@gym.test"})
	if req.From != "Coach <coach@gym.test>" || req.ReplyTo != "coach@gym.test" || req.Tags != nil {
		t.Errorf("overrides = %+v", req)
	}

	if _, err := s.request(Message{To: "  "}); !errors.Is(err, ErrNoRecipient) {
		t.Errorf("err = %v, want ErrNoRecipient", err)
	}
}
