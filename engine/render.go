package engine

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// continuationIndent prefixes every content line under a block header.
const continuationIndent = "          > "

// wrapWidth is the word-wrap width for utterance content.
const wrapWidth = 72

// TranscriptEvent is one renderable entry of a world's history: either an
// agent action or a stimulus delivery.
type TranscriptEvent struct {
	// Agent is the qualified display name of the actor (TALK/THINK/DONE) or
	// the stimulus target (CONVERSATION).
	Agent string

	// Kind is the semantic action tag: TALK, THINK, DONE or CONVERSATION.
	Kind string

	// Content is the utterance, thought or stimulus text.
	Content string

	// Stimulus marks broadcast deliveries, rendered as "USER --> name" lines.
	Stimulus bool
}

// RendererOptions configure a Renderer.
type RendererOptions struct {
	// Styled enables ANSI styling. The profile is forced to ANSI so output is
	// identical on and off a terminal. Defaults to plain text.
	Styled bool
}

// Renderer produces the human-readable transcript of a world run. The block
// format is stable: a header line per action ("<name> acts: [KIND]" or
// "USER --> <name>: [KIND]") followed by marker-prefixed continuation lines,
// blocks separated by blank lines. The transcript package's fallback parser
// consumes exactly this shape, styled or not.
type Renderer struct {
	styled bool

	header   lipgloss.Style
	tag      lipgloss.Style
	line     lipgloss.Style
	stimulus lipgloss.Style
}

// NewRenderer creates a transcript renderer.
func NewRenderer(optFns ...func(o *RendererOptions)) *Renderer {
	opts := RendererOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	// Force the ANSI profile so styling never depends on the ambient
	// terminal; transcripts must render identically in tests and pipes.
	r := lipgloss.NewRenderer(io.Discard, termenv.WithProfile(termenv.ANSI))
	// lipgloss ignores the termenv profile option for its own color profile
	// and would otherwise auto-detect Ascii from the non-TTY writer.
	r.SetColorProfile(termenv.ANSI)
	return &Renderer{
		styled:   opts.Styled,
		header:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		tag:      r.NewStyle().Foreground(lipgloss.Color("3")),
		line:     r.NewStyle().Foreground(lipgloss.Color("7")),
		stimulus: r.NewStyle().Italic(true).Foreground(lipgloss.Color("4")),
	}
}

// Render produces the transcript for the given history.
func (r *Renderer) Render(events []TranscriptEvent) string {
	var b strings.Builder
	for i, ev := range events {
		if i > 0 {
			b.WriteString("\n")
		}
		r.renderEvent(&b, ev)
	}
	return b.String()
}

func (r *Renderer) renderEvent(b *strings.Builder, ev TranscriptEvent) {
	tag := "[" + ev.Kind + "]"
	var head string
	if ev.Stimulus {
		head = "USER --> " + ev.Agent + ": "
		if r.styled {
			head = r.stimulus.Render(head)
		}
	} else {
		head = ev.Agent + " acts: "
		if r.styled {
			head = r.header.Render(head)
		}
	}
	if r.styled {
		tag = r.tag.Render(tag)
	}
	b.WriteString(head + tag + "\n")

	for _, line := range wrap(ev.Content, wrapWidth) {
		text := continuationIndent + line
		if r.styled {
			text = r.line.Render(text)
		}
		b.WriteString(text + "\n")
	}
}

// wrap word-wraps text to the given width, preserving explicit newlines.
func wrap(text string, width int) []string {
	var out []string
	for _, paragraph := range strings.Split(strings.TrimSpace(text), "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			continue
		}
		line := words[0]
		for _, word := range words[1:] {
			if len(line)+1+len(word) > width {
				out = append(out, line)
				line = word
				continue
			}
			line += " " + word
		}
		out = append(out, line)
	}
	return out
}

// stimulusEvent builds the delivery entry for one broadcast target.
func stimulusEvent(target, text string) TranscriptEvent {
	return TranscriptEvent{Agent: target, Kind: "CONVERSATION", Content: text, Stimulus: true}
}

// actionEvent builds the entry for one agent action.
func actionEvent(agent, kind, content string) TranscriptEvent {
	return TranscriptEvent{Agent: agent, Kind: kind, Content: content}
}
