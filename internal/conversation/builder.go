// Package conversation turns a captured message plus its context window into model turns.
package conversation

import "github.com/Habeeb00/msghelp/internal/models"

// Build reverses the newest-first context to oldest-first, maps each role hint to a turn role,
// and appends current as the final user turn whatever its own role hint says.
func Build(current models.Message, window models.ContextWindow) []models.ConversationTurn {
	turns := make([]models.ConversationTurn, 0, len(window)+1)
	for i := len(window) - 1; i >= 0; i-- {
		msg := window[i]
		turns = append(turns, models.ConversationTurn{
			Role:    roleFor(msg.RoleHint),
			Content: msg.Text,
		})
	}
	return append(turns, models.ConversationTurn{Role: models.RoleUser, Content: current.Text})
}

// roleFor maps "outgoing" to assistant; anything else was written by the other party.
func roleFor(hint string) string {
	if hint == models.RoleHintOutgoing {
		return models.RoleAssistant
	}
	return models.RoleUser
}
