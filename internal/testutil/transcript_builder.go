package testutil

import "strings"

// TranscriptBuilder assembles rendered plain-text transcripts in the block
// format the fallback parser consumes: a header line per action followed by
// marker-prefixed continuation lines, blocks separated by blank lines.
// Example:
//
//	rendered := NewTranscriptBuilder().
//		Stimulus("Alice_a1b2c3d4", "CONVERSATION").
//		Block("Alice_a1b2c3d4", "TALK", "I like the concept,", "it feels mature.").
//		Build()
type TranscriptBuilder struct {
	blocks []string
}

// NewTranscriptBuilder creates an empty builder.
func NewTranscriptBuilder() *TranscriptBuilder { return &TranscriptBuilder{} }

// Block appends an agent action block; each line becomes one continuation
// line (chainable).
func (b *TranscriptBuilder) Block(agent, kind string, lines ...string) *TranscriptBuilder {
	var sb strings.Builder
	sb.WriteString(agent + " acts: [" + kind + "]\n")
	for _, line := range lines {
		sb.WriteString("          > " + line + "\n")
	}
	b.blocks = append(b.blocks, sb.String())
	return b
}

// Stimulus appends a broadcast delivery line (chainable).
func (b *TranscriptBuilder) Stimulus(target, text string) *TranscriptBuilder {
	b.blocks = append(b.blocks, "USER --> "+target+": [CONVERSATION]\n          > "+text+"\n")
	return b
}

// Caption appends arbitrary decorative text outside any block (chainable).
func (b *TranscriptBuilder) Caption(text string) *TranscriptBuilder {
	b.blocks = append(b.blocks, text+"\n")
	return b
}

// Build returns the rendered transcript.
func (b *TranscriptBuilder) Build() string {
	return strings.Join(b.blocks, "\n")
}
