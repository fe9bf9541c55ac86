package transcript

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hupe1980/agentsim/core"
)

// FallbackSource scrapes the rendered plain-text transcript. It exists for
// engines (or engine states) that produce no usable action stream; the
// renderer output is always available and therefore the authoritative
// fallback.
//
// The renderer does not print true round numbers, so records carry a
// monotonically increasing sequence index instead, starting at 1, and are
// tagged parsed-fallback. Consumers must never treat that index as an
// authoritative round number; the precision loss is deliberate and documented,
// not something to silently repair.
type FallbackSource struct {
	rendered string
	opts     Options
}

var _ Source = (*FallbackSource)(nil)

// NewFallbackSource creates a fallback reconstruction over a rendered
// transcript.
func NewFallbackSource(rendered string, optFns ...func(o *Options)) *FallbackSource {
	return &FallbackSource{rendered: rendered, opts: applyOptions(optFns)}
}

var (
	// csiEscape matches CSI terminal control sequences (colors, cursor moves).
	csiEscape = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

	// oscEscape matches OSC sequences terminated by BEL or ST.
	oscEscape = regexp.MustCompile(`\x1b\][^\x07\x1b]*(\x07|\x1b\\)`)

	// styleTag matches decorative lowercase style tags like [bold] or [/dim].
	// Semantic action tags are ALL-CAPS ([TALK], [THINK], [DONE],
	// [CONVERSATION]) and deliberately do not match.
	styleTag = regexp.MustCompile(`\[/?[a-z][a-z0-9 _=#-]*\]`)

	// headerLine matches an agent action header: "<AgentName> acts: [KIND]".
	headerLine = regexp.MustCompile(`^(\S.*?) acts: \[([A-Z_]+)\]\s*$`)

	// stimulusLine matches broadcast delivery lines. They bound blocks but
	// never become records; the stimulus is caller input, not agent speech.
	stimulusLine = regexp.MustCompile(`^USER --> .*: \[[A-Z_]+\]\s*$`)
)

// block is one grouped agent action: a header plus its continuation lines.
type block struct {
	agent string
	kind  string
	lines []string
}

// Reconstruct strips terminal styling, groups agent headers with their
// marker-prefixed continuation lines and emits one record per utterance block
// meeting the length threshold.
func (s *FallbackSource) Reconstruct() ([]core.InteractionRecord, Diagnostics, error) {
	diag := Diagnostics{Source: core.SourceParsedFallback}

	cleaned := csiEscape.ReplaceAllString(s.rendered, "")
	cleaned = oscEscape.ReplaceAllString(cleaned, "")
	cleaned = styleTag.ReplaceAllString(cleaned, "")

	var blocks []block
	var current *block

	flush := func() {
		if current != nil {
			blocks = append(blocks, *current)
			current = nil
		}
	}

	for _, rawLine := range strings.Split(cleaned, "\n") {
		line := strings.TrimRight(rawLine, " \t\r")
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			flush()
		case stimulusLine.MatchString(trimmed):
			flush()
		case headerLine.MatchString(trimmed):
			flush()
			m := headerLine.FindStringSubmatch(trimmed)
			current = &block{agent: strings.TrimSpace(m[1]), kind: m[2]}
		case current != nil && strings.HasPrefix(trimmed, ">"):
			current.lines = append(current.lines, strings.TrimSpace(strings.TrimPrefix(trimmed, ">")))
		default:
			// Decorative rules, captions and anything else between blocks.
			flush()
		}
	}
	flush()

	diag.Blocks = len(blocks)

	var records []core.InteractionRecord
	seq := 0
	for _, b := range blocks {
		if b.kind != core.ActionTalk {
			continue
		}
		utterance := strings.TrimSpace(strings.Join(b.lines, " "))
		if utf8.RuneCountInString(utterance) < s.opts.MinUtteranceLength {
			continue
		}
		seq++
		records = append(records, core.InteractionRecord{
			Round:     seq,
			Agent:     core.CleanAgentName(b.agent),
			Utterance: utterance,
			Timestamp: s.opts.Now(),
			Source:    core.SourceParsedFallback,
		})
	}

	diag.Records = len(records)
	return records, diag, nil
}
