package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Habeeb00/msghelp/internal/models"
	"github.com/spf13/cobra"
)

func newSuggestCmd() *cobra.Command {
	var (
		variant   string
		sessionID string
		prior     []string
	)

	cmd := &cobra.Command{
		Use:   "suggest <message>",
		Short: "Suggest a reply to one message and print the result as JSON",
		Example: `  msghelp suggest "sounds good, see you then" --context "outgoing:ok see you at 5?"
  msghelp suggest "what are you up to?" --variant general`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := parseContext(prior)
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			resp, err := a.handler.Suggest(cmd.Context(), &models.SuggestRequest{
				Message: models.Message{
					Text:      args[0],
					RoleHint:  models.RoleHintIncoming,
					Timestamp: time.Now().Unix(),
				},
				Context:   window,
				Variant:   variant,
				SessionID: sessionID,
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}

	cmd.Flags().StringVar(&variant, "variant", "", "Model variant (default fine-tuned)")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id to continue")
	cmd.Flags().StringArrayVar(&prior, "context", nil, "Prior message as role:text, newest first (repeatable)")
	return cmd
}

// parseContext turns "incoming:text" / "outgoing:text" flags into a context window
func parseContext(values []string) (models.ContextWindow, error) {
	window := make(models.ContextWindow, 0, len(values))
	for _, v := range values {
		role, text, ok := strings.Cut(v, ":")
		if !ok {
			return nil, fmt.Errorf("context %q: want role:text", v)
		}
		role = strings.ToLower(strings.TrimSpace(role))
		if role != models.RoleHintIncoming && role != models.RoleHintOutgoing {
			return nil, fmt.Errorf("context %q: role must be %s or %s", v, models.RoleHintIncoming, models.RoleHintOutgoing)
		}
		window = append(window, models.Message{Text: text, RoleHint: role})
	}
	return window, nil
}
