package service

import (
	"fmt"
	"strings"

	"ragindex/internal/domain"
)

// NoContext is what FormatContext returns for an empty result set.
const NoContext = "No relevant context found in the knowledge base."

const contextSeparator = "\n\n---\n\n"

// DefaultSystemPrompt is used by BuildMessages when the caller has none.
const DefaultSystemPrompt = "You are a helpful assistant. Answer questions based only on the provided context. " +
	"If you cannot find the answer in the context, say so clearly. " +
	"Always cite the source when providing information."

// Source is the citation of one retrieved chunk.
type Source struct {
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Relevance  float64 `json:"relevance"`
}

// Message is one chat turn handed to an answer-generation model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// FormatContext renders results as numbered source blocks for a prompt.
func FormatContext(results []domain.SearchResult) string {
	if len(results) == 0 {
		return NoContext
	}
	parts := make([]string, len(results))
	for i, r := range results {
		source := r.Metadata.Source
		if source == "" {
			source = "Unknown"
		}
		parts[i] = fmt.Sprintf("[Source %d: %s]\n%s", i+1, source, r.Text)
	}
	return strings.Join(parts, contextSeparator)
}

// Sources lists the citations of results in rank order.
func Sources(results []domain.SearchResult) []Source {
	out := make([]Source, len(results))
	for i, r := range results {
		out[i] = Source{Filename: r.Metadata.Source, ChunkIndex: r.Metadata.ChunkIndex, Relevance: r.Score}
	}
	return out
}

// BuildMessages assembles the system prompt, prior turns and the query into
// the message list for an answer-generation model.
func BuildMessages(query, context, systemPrompt string, history []Message) []Message {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\n## Context from Knowledge Base:\n\n")
	b.WriteString(context)
	b.WriteString("\n")
	if len(history) > 0 {
		b.WriteString("\n## Conversation Context:\n")
		b.WriteString("You are in an ongoing conversation. Build on your previous answers and keep them consistent.\n")
	}
	b.WriteString("\n## Instructions:\n")
	b.WriteString("- Answer based ONLY on the context provided above\n")
	b.WriteString("- If the context doesn't contain relevant information, say so clearly\n")
	b.WriteString("- Cite sources when providing information (e.g., \"According to [Source 1: filename]...\")\n")
	b.WriteString("- Be concise but thorough")

	msgs := make([]Message, 0, len(history)+2)
	msgs = append(msgs, Message{Role: "system", Content: b.String()})
	msgs = append(msgs, history...)
	msgs = append(msgs, Message{Role: "user", Content: query})
	return msgs
}
