package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSchema(t *testing.T) {
	type findings struct {
		Summary   string   `json:"summary" description:"Concise summary"`
		KeyPoints []string `json:"key_points"`
		Score     float64  `json:"score,omitempty"`
		Details   *string  `json:"details"`
		hidden    int
	}

	schema := CreateSchema(findings{})
	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"type": "string", "description": "Concise summary"}, props["summary"])
	assert.Equal(t, map[string]any{"type": "array"}, props["key_points"])
	assert.Equal(t, map[string]any{"type": "number"}, props["score"])
	assert.Equal(t, map[string]any{"type": "string"}, props["details"])
	assert.NotContains(t, props, "hidden")

	// omitempty and pointer fields are optional.
	assert.Equal(t, []string{"summary", "key_points"}, schema["required"])
}

func TestCreateSchema_NonStruct(t *testing.T) {
	schema := CreateSchema("not a struct")
	assert.Equal(t, "object", schema["type"])
	assert.Empty(t, schema["properties"])
	assert.NotContains(t, schema, "required")
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("You are {{.name}}, interested in {{join .interests \", \"}}.", map[string]any{
		"name":      "Alice",
		"interests": []string{"hiking", "jazz"},
	})
	require.NoError(t, err)
	assert.Equal(t, "You are Alice, interested in hiking, jazz.", out)
}

func TestRenderTemplate_PassthroughWithoutMarkers(t *testing.T) {
	out, err := RenderTemplate("plain text", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)
}

func TestRenderTemplate_NoEscaping(t *testing.T) {
	out, err := RenderTemplate("{{.quote}}", map[string]any{"quote": `she said "it's <fine>"`})
	require.NoError(t, err)
	assert.Equal(t, `she said "it's <fine>"`, out)
}
