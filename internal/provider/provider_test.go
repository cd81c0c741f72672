package provider

import (
	"testing"

	"github.com/chatrelay/chatrelay/internal/model"
)

func TestBuildMessages_RoleMappingAndOrder(t *testing.T) {
	t.Parallel()

	history := model.History{
		{Role: model.RoleUser, Content: "first"},
		{Role: model.RoleAssistant, Content: "second"},
		{Role: "system", Content: "unknown role"},
	}

	messages := buildMessages(history, "current")

	if len(messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(messages))
	}
	if messages[0].Role != "user" || messages[0].Content != "first" {
		t.Errorf("unexpected first message: %+v", messages[0])
	}
	if messages[1].Role != "assistant" {
		t.Errorf("assistant role should be preserved, got %s", messages[1].Role)
	}
	// Unknown roles collapse to user rather than leaking upstream.
	if messages[2].Role != "user" {
		t.Errorf("unknown role should map to user, got %s", messages[2].Role)
	}
	if messages[3].Role != "user" || messages[3].Content != "current" {
		t.Errorf("current message must be the final user turn: %+v", messages[3])
	}
}

func TestBuildMessages_DropsBlankTurns(t *testing.T) {
	t.Parallel()

	history := model.History{
		{Role: model.RoleUser, Content: "  "},
		{Role: model.RoleAssistant, Content: ""},
		{Role: model.RoleUser, Content: "kept"},
	}

	messages := buildMessages(history, "current")
	if len(messages) != 2 {
		t.Fatalf("expected blank turns dropped, got %d messages", len(messages))
	}
	if messages[0].Content != "kept" {
		t.Errorf("unexpected first message: %+v", messages[0])
	}
}

func TestBuildMessages_BoundsHistory(t *testing.T) {
	t.Parallel()

	history := make(model.History, 50)
	for i := range history {
		history[i] = model.Turn{Role: model.RoleUser, Content: "x"}
	}

	messages := buildMessages(history, "current")
	// 20 retained turns plus the current message.
	if len(messages) != maxHistoryTurns+1 {
		t.Fatalf("expected %d messages, got %d", maxHistoryTurns+1, len(messages))
	}
}
