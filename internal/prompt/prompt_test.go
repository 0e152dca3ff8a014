package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iddcare/carebot/internal/llm"
	"github.com/iddcare/carebot/internal/safety"
)

func TestBuildStructure(t *testing.T) {
	msgs := Build("How do I help my child sleep?", "[Title: Sleep | Authors: Breslin | Year: 2014]\nSleep text.")

	require.Len(t, msgs, len(fewShot)+2)

	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "IDDCareBot")
	assert.Contains(t, msgs[0].Content, "Do NOT generate or guess URLs")

	// Few-shot pairs sit between system and live question, alternating roles.
	for i, m := range msgs[1 : len(msgs)-1] {
		if i%2 == 0 {
			assert.Equal(t, llm.RoleUser, m.Role)
		} else {
			assert.Equal(t, llm.RoleAssistant, m.Role)
		}
	}

	last := msgs[len(msgs)-1]
	assert.Equal(t, llm.RoleUser, last.Role)
	assert.Contains(t, last.Content, "Caregiver question: How do I help my child sleep?")
	assert.Contains(t, last.Content, "Context (use to ground your answer):\n[Title: Sleep")
	assert.Contains(t, last.Content, "Remember: "+safety.NonDiagnosticReminder)
}

func TestBuildReturnsFreshSlice(t *testing.T) {
	a := Build("first question", "ctx")
	b := Build("second question", "ctx")

	a[0].Content = "mutated"
	assert.NotEqual(t, a[0].Content, b[0].Content)
	assert.Contains(t, b[len(b)-1].Content, "second question")
}

func TestBuildWithEmptyContext(t *testing.T) {
	msgs := Build("any question", "")
	last := msgs[len(msgs)-1]
	assert.Contains(t, last.Content, "Context (use to ground your answer):\n\n")
}
