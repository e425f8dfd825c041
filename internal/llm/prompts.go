package llm

import (
	"fmt"
	"strings"

	"github.com/scrypster/companion/pkg/types"
)

const analysisPromptTemplate = `Analyze this memory and extract information in JSON format.

Memory: "%s"

Respond ONLY with valid JSON (no markdown, no explanation):
{
  "topic": "main topic in 2-3 words",
  "emotion": "emotional tone (happy/sad/neutral/stressed/excited/etc) or null",
  "timeReference": "any date/time mentioned or null",
  "actionItems": ["list of any promises or tasks mentioned"],
  "keyDetails": ["list of 2-3 most important facts"],
  "summary": "one sentence summary"
}

Rules:
- Keep topic very brief (max 3 words)
- Only include emotion if clearly expressed
- actionItems and keyDetails should be arrays (can be empty)
- Make summary concise and clear`

const queryPromptTemplate = `You are a memory assistant. Answer the user's question based ONLY on these memories.

Memories:
%s

User Question: "%s"

Instructions:
- Answer naturally and conversationally
- Only use information from the memories provided
- If you're uncertain, say "I might be mistaken, but..."
- If the answer isn't in the memories, say "I don't have information about that in your memories"
- Keep response concise (2-3 sentences max)`

// BuildAnalysisPrompt builds the prompt that asks for a structured analysis
// of one memory text. The text is embedded verbatim.
func BuildAnalysisPrompt(text string) string {
	return fmt.Sprintf(analysisPromptTemplate, text)
}

// BuildQueryPrompt builds the prompt answering question from memories. Each
// memory becomes a numbered block; blocks are separated by a blank line.
func BuildQueryPrompt(question string, memories []types.Memory) string {
	blocks := make([]string, len(memories))
	for i, m := range memories {
		blocks[i] = formatMemoryBlock(i+1, m)
	}
	return fmt.Sprintf(queryPromptTemplate, strings.Join(blocks, "\n\n"), question)
}

func formatMemoryBlock(n int, m types.Memory) string {
	topic := m.Topic
	if strings.TrimSpace(topic) == "" {
		topic = "unknown"
	}
	return fmt.Sprintf("Memory %d:\nText: %s\nTopic: %s\nEmotion: %s\nTime: %s",
		n, m.RawInput, topic, orDefault(m.Emotion, "none"), orDefault(m.TimeReference, "unspecified"))
}

func orDefault(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
