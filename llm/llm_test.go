package llm

import (
	"testing"
)

func TestMessageIsValid(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want bool
	}{
		{"system with content", System("you are a translator"), true},
		{"user with content", User("what zipcode is densest?"), true},
		{"assistant with content", Message{Role: RoleAssistant, Content: "MATCH (n) RETURN n"}, true},
		{"empty content", Message{Role: RoleUser}, false},
		{"unknown role", Message{Role: "tool", Content: "x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     *CompletionRequest
		wantErr bool
	}{
		{"nil request", nil, true},
		{"no messages", &CompletionRequest{}, true},
		{"valid", NewCompletionRequest([]Message{System("s"), User("u")}), false},
		{"invalid message", NewCompletionRequest([]Message{{Role: RoleUser}}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRequest(tt.req)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCompletionOptions(t *testing.T) {
	req := NewCompletionRequest([]Message{User("hi")},
		WithTemperature(0.2),
		WithMaxTokens(512),
	)
	if req.Temperature == nil || *req.Temperature != 0.2 {
		t.Errorf("Temperature = %v, want 0.2", req.Temperature)
	}
	if req.MaxTokens == nil || *req.MaxTokens != 512 {
		t.Errorf("MaxTokens = %v, want 512", req.MaxTokens)
	}
}

func TestToOpenAIMessages(t *testing.T) {
	msgs := toOpenAIMessages([]Message{System("s"), User("u"), {Role: RoleAssistant, Content: "a"}})
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[0].Content != "s" {
		t.Errorf("unexpected first message: %+v", msgs[0])
	}
	if msgs[2].Role != "assistant" || msgs[2].Content != "a" {
		t.Errorf("unexpected last message: %+v", msgs[2])
	}
}

func TestNewOpenAIClient_RequiresKeyAndModel(t *testing.T) {
	if _, err := NewOpenAIClient(OpenAIConfig{Model: "gpt-4o"}); err == nil {
		t.Error("expected error for missing API key")
	}
	if _, err := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test"}); err == nil {
		t.Error("expected error for missing model")
	}
	c, err := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Model() != "gpt-4o" {
		t.Errorf("Model() = %q, want gpt-4o", c.Model())
	}
}
