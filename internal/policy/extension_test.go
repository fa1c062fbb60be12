package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtendAllowedCommands_NoOpOnEmptyExpr(t *testing.T) {
	base := []string{"git", "rg"}
	out, err := ExtendAllowedCommands(base, "")
	require.NoError(t, err)
	assert.Equal(t, base, out)
}

func TestExtendAllowedCommands_EvaluatesAndAppends(t *testing.T) {
	out, err := ExtendAllowedCommands([]string{"git"}, `[]string{"make", "go"}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"git", "make", "go"}, out)
}

func TestExtendAllowedCommands_RejectsWrongType(t *testing.T) {
	_, err := ExtendAllowedCommands([]string{"git"}, `42`)
	require.Error(t, err)
}

func TestExtendAllowedCommands_ReturnsEvalError(t *testing.T) {
	_, err := ExtendAllowedCommands([]string{"git"}, `this is not valid go`)
	require.Error(t, err)
}

func TestExtendAllowedCommands_DoesNotMutateBase(t *testing.T) {
	base := []string{"git"}
	out, err := ExtendAllowedCommands(base, `[]string{"make"}`)
	require.NoError(t, err)
	require.Len(t, base, 1)
	assert.Len(t, out, 2)
}
