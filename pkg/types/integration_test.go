package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemIdentifier(t *testing.T) {
	c := IntegrationConfiguration{UserID: 12, ID: 345}
	assert.Equal(t, "12:345", c.SystemIdentifier())
	assert.Equal(t, c.SystemIdentifier(), c.SystemIdentifier())

	userID, id, err := ParseSystemIdentifier(c.SystemIdentifier())
	require.NoError(t, err)
	assert.Equal(t, int64(12), userID)
	assert.Equal(t, int64(345), id)

	for _, bad := range []string{"", "12", "a:1", "1:b", "1:2:3"} {
		_, _, err := ParseSystemIdentifier(bad)
		assert.Error(t, err, bad)
	}
}

func TestPropertyString(t *testing.T) {
	props := map[string]any{
		"name":   "  solar  ",
		"blank":  "   ",
		"number": 42,
		"nil":    nil,
	}
	assert.Equal(t, "solar", PropertyString(props, "name"))
	assert.Equal(t, "", PropertyString(props, "blank"))
	assert.Equal(t, "42", PropertyString(props, "number"))
	assert.Equal(t, "", PropertyString(props, "nil"))
	assert.Equal(t, "", PropertyString(props, "missing"))
	assert.Equal(t, "", PropertyString(nil, "missing"))

	c := IntegrationConfiguration{ServiceProperties: props}
	assert.Equal(t, "solar", c.StringProperty("name"))
}

func TestInstructionStateTerminal(t *testing.T) {
	assert.False(t, InstructionStateQueued.Terminal())
	assert.False(t, InstructionStateExecuting.Terminal())
	assert.True(t, InstructionStateCompleted.Terminal())
	assert.True(t, InstructionStateDeclined.Terminal())
}

func TestDatumIsEmpty(t *testing.T) {
	assert.True(t, Datum{}.IsEmpty())
	assert.False(t, Datum{Status: map[string]string{"mode": "on"}}.IsEmpty())
}
