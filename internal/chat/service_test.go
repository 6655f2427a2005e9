package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"trenches-buddy/internal/domain"
)

type fakeProvider struct {
	name     string
	reply    string
	err      error
	calls    int
	received []domain.ChatMessage
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Complete(_ context.Context, messages []domain.ChatMessage) (string, error) {
	f.calls++
	f.received = messages
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func TestService_SendMessage(t *testing.T) {
	p := &fakeProvider{name: "primary", reply: "looks bullish"}
	svc := NewService(nil, p)

	reply, err := svc.SendMessage(context.Background(), []domain.ChatMessage{
		{Role: domain.RoleUser, Content: "what do you think of BONK?"},
	}, nil)
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if reply != "looks bullish" {
		t.Errorf("reply = %q", reply)
	}
	if len(p.received) != 2 {
		t.Fatalf("provider received %d messages, want 2", len(p.received))
	}
	if p.received[0].Role != domain.RoleSystem {
		t.Errorf("first message role = %s, want system", p.received[0].Role)
	}
	if !strings.HasPrefix(p.received[0].Content, TradingBuddySystemPrompt) {
		t.Error("system message does not start with the trading buddy prompt")
	}
	if strings.Contains(p.received[0].Content, "Current context:") {
		t.Error("system message carries a trading context when none was given")
	}
}

func TestService_SendMessage_InjectsTradingContext(t *testing.T) {
	p := &fakeProvider{name: "primary", reply: "ok"}
	svc := NewService(nil, p)

	_, err := svc.SendMessage(context.Background(), []domain.ChatMessage{
		{Role: domain.RoleUser, Content: "should I buy?"},
	}, &domain.TradingContext{
		SelectedToken:    "BONK",
		PortfolioValue:   1234.5,
		MarketConditions: "volatile",
	})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	system := p.received[0].Content
	if !strings.Contains(system, "Current context:") {
		t.Fatal("system message missing the serialized trading context")
	}
	for _, want := range []string{`"selectedToken":"BONK"`, `"portfolioValue":1234.5`, `"marketConditions":"volatile"`} {
		if !strings.Contains(system, want) {
			t.Errorf("system message missing %s:\n%s", want, system)
		}
	}
}

func TestService_SendMessage_FallsThroughProviders(t *testing.T) {
	first := &fakeProvider{name: "together", err: errors.New("rate limited")}
	second := &fakeProvider{name: "groq", err: errors.New("bad gateway")}
	third := &fakeProvider{name: "huggingface", reply: "recovered"}
	svc := NewService(nil, first, second, third)

	reply, err := svc.SendMessage(context.Background(), []domain.ChatMessage{
		{Role: domain.RoleUser, Content: "hello"},
	}, nil)
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if reply != "recovered" {
		t.Errorf("reply = %q", reply)
	}
	if first.calls != 1 || second.calls != 1 || third.calls != 1 {
		t.Errorf("calls = %d/%d/%d, want 1/1/1", first.calls, second.calls, third.calls)
	}
}

func TestService_SendMessage_AllProvidersFail(t *testing.T) {
	lastErr := errors.New("model overloaded")
	svc := NewService(nil,
		&fakeProvider{name: "together", err: errors.New("rate limited")},
		&fakeProvider{name: "groq", err: lastErr},
	)

	_, err := svc.SendMessage(context.Background(), []domain.ChatMessage{
		{Role: domain.RoleUser, Content: "hello"},
	}, nil)
	if err == nil {
		t.Fatal("SendMessage() error = nil, want failure")
	}
	if !errors.Is(err, lastErr) {
		t.Errorf("error = %v, want it to wrap the last provider error", err)
	}
}

func TestService_SendMessage_NoProviders(t *testing.T) {
	svc := NewService(nil)

	_, err := svc.SendMessage(context.Background(), []domain.ChatMessage{
		{Role: domain.RoleUser, Content: "hello"},
	}, nil)
	if !errors.Is(err, ErrNoProviderConfigured) {
		t.Errorf("error = %v, want ErrNoProviderConfigured", err)
	}
}

func TestService_SendMessage_StopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	second := &fakeProvider{name: "groq", reply: "should not run"}
	svc := NewService(nil,
		&fakeProvider{name: "together", err: context.Canceled},
		second,
	)

	if _, err := svc.SendMessage(ctx, []domain.ChatMessage{
		{Role: domain.RoleUser, Content: "hello"},
	}, nil); err == nil {
		t.Fatal("SendMessage() error = nil, want failure")
	}
	if second.calls != 0 {
		t.Errorf("second provider called %d times after cancellation, want 0", second.calls)
	}
}

func TestService_Providers(t *testing.T) {
	svc := NewService(nil,
		&fakeProvider{name: "together"},
		&fakeProvider{name: "groq"},
	)
	got := svc.Providers()
	if len(got) != 2 || got[0] != "together" || got[1] != "groq" {
		t.Errorf("Providers() = %v", got)
	}
	if !svc.HasProviders() {
		t.Error("HasProviders() = false")
	}
	if NewService(nil).HasProviders() {
		t.Error("HasProviders() on empty service = true")
	}
}
