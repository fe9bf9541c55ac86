package transcript

import (
	"strings"
	"testing"

	"github.com/hupe1980/agentsim/core"
	"github.com/hupe1980/agentsim/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallback_TwoBlockRoundTrip(t *testing.T) {
	rendered := strings.Join([]string{
		"Alice_a1b2c3d4 acts: [TALK]",
		"          > I think the pricing is too aggressive",
		"          > for casual users of the product.",
		"",
		"Bob_a1b2c3d4 acts: [TALK]",
		"          > I disagree, the premium tier is fair.",
		"",
	}, "\n")

	records, diag, err := NewFallbackSource(rendered).Reconstruct()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 2, diag.Blocks)

	assert.Equal(t, "Alice", records[0].Agent)
	assert.Equal(t, "I think the pricing is too aggressive for casual users of the product.", records[0].Utterance)
	assert.Equal(t, "Bob", records[1].Agent)
	assert.Equal(t, "I disagree, the premium tier is fair.", records[1].Utterance)

	// Sequence indexes are best-effort ordering, not true round numbers.
	assert.Equal(t, 1, records[0].Round)
	assert.Equal(t, 2, records[1].Round)
	for _, rec := range records {
		assert.Equal(t, core.SourceParsedFallback, rec.Source)
	}
}

func TestFallback_StripsAnsiEscapes(t *testing.T) {
	rendered := "\x1b[1;32mAlice acts: [TALK]\x1b[0m\n" +
		"\x1b[32m          > colored output parses the same as plain text\x1b[0m\n"

	records, _, err := NewFallbackSource(rendered).Reconstruct()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Alice", records[0].Agent)
	assert.Equal(t, "colored output parses the same as plain text", records[0].Utterance)
}

func TestFallback_StripsStyleTagsKeepsSemanticTags(t *testing.T) {
	rendered := "[bold]Alice acts: [TALK][/bold]\n" +
		"   > [dim]styled continuation line with enough text[/dim]\n"

	records, _, err := NewFallbackSource(rendered).Reconstruct()
	require.NoError(t, err)
	require.Len(t, records, 1, "the [TALK] tag must survive style stripping")
	assert.Equal(t, "styled continuation line with enough text", records[0].Utterance)
}

func TestFallback_IgnoresThinkBlocksAndStimulus(t *testing.T) {
	rendered := testutil.NewTranscriptBuilder().
		Stimulus("Alice_a1b2c3d4", "What do you think about the new pricing?").
		Block("Alice_a1b2c3d4", "THINK", "Privately weighing the tradeoffs here.").
		Block("Alice_a1b2c3d4", "TALK", "Publicly, I support the change.").
		Block("Alice_a1b2c3d4", "DONE").
		Build()

	records, diag, err := NewFallbackSource(rendered).Reconstruct()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Publicly, I support the change.", records[0].Utterance)
	assert.Equal(t, 3, diag.Blocks, "THINK and DONE blocks are parsed but not recorded")
}

func TestFallback_ShortUtterancesDiscarded(t *testing.T) {
	rendered := "Alice acts: [TALK]\n   > ok\n"
	records, _, err := NewFallbackSource(rendered).Reconstruct()
	require.NoError(t, err)
	assert.Empty(t, records)

	// The threshold counts runes, so a multi-byte fragment under ten
	// characters is discarded too.
	rendered = "Alice acts: [TALK]\n   > héhéhéhé\n"
	records, _, err = NewFallbackSource(rendered).Reconstruct()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFallback_EmptyTranscript(t *testing.T) {
	records, diag, err := NewFallbackSource("").Reconstruct()
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, diag.Blocks)
}

func TestFallback_HeaderWithoutContinuation(t *testing.T) {
	rendered := "Alice acts: [TALK]\nBob acts: [TALK]\n   > only Bob actually says something here\n"
	records, _, err := NewFallbackSource(rendered).Reconstruct()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Bob", records[0].Agent)
}
