package prompts

import "fmt"

// Built-in variant names
const (
	VariantFineTuned = "fine-tuned"
	VariantGeneral   = "general"
)

// FineTunedPrompt is the persona for the fine-tuned model.
const FineTunedPrompt = `You are Manslater, a texting assistant trained on real conversations.
Read the chat and write the single reply the user should send next.

RULES:
1. Match the tone, length and language of the conversation
2. Reply with the message text only, no quotes, no explanations
3. Never mention that you are an assistant`

// GeneralPrompt is the persona for the general-purpose model.
const GeneralPrompt = `You help people reply to chat messages.
Given the conversation so far, suggest one short, natural reply the user could send to the last message.

RULES:
1. Keep it brief and friendly unless the conversation is formal
2. Use the same language as the last message
3. Reply with the suggested message only, without quotes or commentary`

// SummaryPrompt asks the model to condense earlier turns.
const SummaryPrompt = "Summarize the key context from this conversation in 1-2 sentences."

const contextTemplate = `%s

Previous conversation context: %s`

// RateLimitMessage is shown to users when the upstream model throttles us.
const RateLimitMessage = "Whoa there! Too many requests.\nTake a breather and try again in a minute."

// FallbackMessage is shown when a suggestion could not be generated.
const FallbackMessage = "I couldn't come up with a reply right now. Please try again."

// WithContext appends a conversation summary to a system prompt.
func WithContext(systemPrompt, summary string) string {
	if summary == "" {
		return systemPrompt
	}
	return fmt.Sprintf(contextTemplate, systemPrompt, summary)
}
