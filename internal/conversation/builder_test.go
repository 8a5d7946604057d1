package conversation

import (
	"reflect"
	"testing"

	"github.com/Habeeb00/msghelp/internal/models"
)

func TestBuildScenario(t *testing.T) {
	current := models.Message{Text: "sounds good, see you then", RoleHint: models.RoleHintIncoming, Timestamp: 100}
	window := models.ContextWindow{{Text: "ok see you at 5?", RoleHint: models.RoleHintOutgoing, Timestamp: 90}}

	got := Build(current, window)
	want := []models.ConversationTurn{
		{Role: models.RoleAssistant, Content: "ok see you at 5?"},
		{Role: models.RoleUser, Content: "sounds good, see you then"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Build = %+v, want %+v", got, want)
	}
}

func TestBuildOrdering(t *testing.T) {
	// newest first, alternating
	window := models.ContextWindow{
		{Text: "4", RoleHint: models.RoleHintIncoming},
		{Text: "3", RoleHint: models.RoleHintOutgoing},
		{Text: "2", RoleHint: models.RoleHintIncoming},
		{Text: "1", RoleHint: models.RoleHintOutgoing},
	}
	current := models.Message{Text: "now", RoleHint: models.RoleHintOutgoing}

	got := Build(current, window)
	if len(got) != 5 {
		t.Fatalf("expected 5 turns, got %d", len(got))
	}

	wantContent := []string{"1", "2", "3", "4", "now"}
	wantRole := []string{models.RoleAssistant, models.RoleUser, models.RoleAssistant, models.RoleUser, models.RoleUser}
	for i := range got {
		if got[i].Content != wantContent[i] || got[i].Role != wantRole[i] {
			t.Errorf("turn %d = %+v, want {%s %s}", i, got[i], wantRole[i], wantContent[i])
		}
	}
}

func TestBuildEmptyContext(t *testing.T) {
	got := Build(models.Message{Text: "hello", RoleHint: models.RoleHintIncoming}, nil)
	if len(got) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(got))
	}
	if got[0].Role != models.RoleUser || got[0].Content != "hello" {
		t.Errorf("unexpected turn: %+v", got[0])
	}
}

func TestBuildDoesNotMutateInput(t *testing.T) {
	window := models.ContextWindow{
		{Text: "b", RoleHint: models.RoleHintIncoming},
		{Text: "a", RoleHint: models.RoleHintOutgoing},
	}
	Build(models.Message{Text: "c"}, window)
	if window[0].Text != "b" || window[1].Text != "a" {
		t.Errorf("context window reordered in place: %+v", window)
	}
}

func TestBuildUnknownRoleHintIsUser(t *testing.T) {
	got := Build(models.Message{Text: "c"}, models.ContextWindow{{Text: "x", RoleHint: ""}})
	if got[0].Role != models.RoleUser {
		t.Errorf("role = %q, want user", got[0].Role)
	}
}
