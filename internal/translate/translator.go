// Package translate defines the translator contract used by the message
// pipeline and the daily extraction, plus the prompt construction shared by
// provider implementations.
//
// The translator is deterministic for fixed inputs and must return a
// non-empty string or fail; transient provider errors are retried inside the
// implementation with exponential backoff before surfacing.
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrEmptyResult is returned when a provider answers with an empty string.
var ErrEmptyResult = errors.New("translator returned an empty result")

// ContextEntry is one message of translation context, oldest first.
type ContextEntry struct {
	SenderLanguage string
	Text           string
	SentAt         time.Time
}

// Request carries everything a provider needs for one translation.
type Request struct {
	Text         string
	FromLanguage string
	ToLanguage   string

	// TargetGender steers gendered grammar in the target language. Empty or
	// unrecognized values add no instruction.
	TargetGender string

	// IndustryName and IndustryDescription ground terminology choices.
	IndustryName        string
	IndustryDescription string

	// Context is the sliding window of recent conversation, oldest first.
	Context []ContextEntry
}

// TranscriptLine is one timestamped message inside an extraction transcript.
type TranscriptLine struct {
	At   time.Time
	Text string
}

// WorkerTranscript groups a worker's last-24h messages for extraction.
type WorkerTranscript struct {
	WorkerName string
	Lines      []TranscriptLine
}

// ExtractionRequest asks for a flat action-item list over a 24h window.
type ExtractionRequest struct {
	Transcripts         []WorkerTranscript
	IndustryName        string
	IndustryDescription string
	OutputLanguage      string
}

// Translator is the provider contract consumed by the services layer.
type Translator interface {
	// Translate returns the translated text, or an error after retries are
	// exhausted. The result is never empty on success.
	Translate(ctx context.Context, req Request) (string, error)

	// ExtractActionItems produces the daily action-item list in the
	// requested output language.
	ExtractActionItems(ctx context.Context, req ExtractionRequest) (string, error)
}

// BuildTranslationPrompt renders the provider prompt: industry context,
// gender instruction, conversation history, and the translate-don't-answer
// rules.
func BuildTranslationPrompt(req Request) string {
	industryName := req.IndustryName
	description := req.IndustryDescription
	if industryName == "" {
		industryName = "workplace"
	}
	if description == "" {
		description = "workplace communication"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a specialized translator for %s communications.\n\n", industryName)
	fmt.Fprintf(&b, "Context: %s\n\n", description)
	fmt.Fprintf(&b, "Translate from %s to %s.", req.FromLanguage, req.ToLanguage)

	switch strings.ToLower(req.TargetGender) {
	case "male", "female":
		fmt.Fprintf(&b, "\nThe recipient is %s. Use appropriate gendered grammar for %s.",
			strings.ToLower(req.TargetGender), req.ToLanguage)
	}

	if len(req.Context) > 0 {
		b.WriteString("\n\nRecent conversation for context:\n")
		for _, msg := range req.Context {
			fmt.Fprintf(&b, "- %s\n", msg.Text)
		}
		b.WriteString("\nUse this context to understand pronouns, references, and topic continuity.\n")
	}

	fmt.Fprintf(&b, `
Rules:
- Translate the message naturally and conversationally
- For greetings and casual messages (like "What's up?", "How are you?", "Hello"), translate them as natural conversational greetings in %[1]s
- For questions - translate the QUESTION itself - do NOT answer it
- Use industry-specific terminology appropriate for %[2]s
- Use conversation history to understand pronouns (he/she/it) and references and the overall context.
- Maintain natural workplace communication tone
- Return ONLY the translated message, nothing else

Text to translate:
%[3]s`, req.ToLanguage, industryName, req.Text)

	return b.String()
}

// BuildExtractionPrompt renders the action-item extraction prompt. The
// instructions are deliberately blunt about extraction versus summarization.
func BuildExtractionPrompt(req ExtractionRequest) string {
	industryName := req.IndustryName
	description := req.IndustryDescription
	if industryName == "" {
		industryName = "workplace"
	}
	if description == "" {
		description = "workplace communication"
	}
	outputLanguage := req.OutputLanguage
	if outputLanguage == "" {
		outputLanguage = "English"
	}

	var convo strings.Builder
	for _, t := range req.Transcripts {
		fmt.Fprintf(&convo, "\n=== %s ===\n", strings.ToUpper(t.WorkerName))
		for _, line := range t.Lines {
			fmt.Fprintf(&convo, "[%s] %s\n", line.At.Format("15:04"), line.Text)
		}
	}

	return fmt.Sprintf(`You are extracting ACTION ITEMS from a %[1]s workplace conversation.

CRITICAL INSTRUCTIONS:
1. Do NOT summarize the conversation. Do NOT explain what happened. ONLY extract specific action items.
2. Output your response ONLY in %[2]s. This is mandatory.

Context: %[3]s

Conversation (last 24 hours):
%[4]s

EXTRACTION RULES:
1. Extract ONLY items that require action or follow-up
2. Format as bullet points (use • symbol)
3. Be specific - include details like names, numbers, locations
4. Group under these categories ONLY if items exist:
   - Action Items
   - Safety Issues
   - Equipment

INCLUDE:
- Specific tasks mentioned ("check cow 115", "fix gate in section 3")
- Safety concerns that need addressing
- Equipment problems requiring attention
- Explicit instructions or requests

EXCLUDE:
- Greetings, confirmations, acknowledgments
- Questions that were already answered
- General conversation or updates
- Completed tasks (if marked as done)

OUTPUT FORMAT (in %[2]s):
Group items by worker name. If NO action items exist, answer exactly:
"No action items found."

REMEMBER:
- Each bullet point must be a SPECIFIC, ACTIONABLE task - not a summary
- Your ENTIRE response must be in %[2]s`,
		industryName, outputLanguage, description, convo.String())
}
