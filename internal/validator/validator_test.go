package validator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"executord/internal/model"
)

func newValidator() *Validator {
	return New([]string{"os", "json", "re"})
}

func TestCheck_AllowsAllowlistedImport(t *testing.T) {
	v := newValidator()
	res, err := v.Check(context.Background(), "import os\nprint(os.getcwd())\n")
	require.NoError(t, err)
	assert.True(t, res.OK)
	require.NotNil(t, res.Tree)
	res.Tree.Close()
}

func TestCheck_RejectsDisallowedImport(t *testing.T) {
	v := newValidator()
	res, err := v.Check(context.Background(), "import socket\n")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, model.ErrPolicyViolation, res.Kind)
}

func TestCheck_RejectsDisallowedFromImport(t *testing.T) {
	v := newValidator()
	res, err := v.Check(context.Background(), "from socket import socket\n")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, model.ErrPolicyViolation, res.Kind)
}

func TestCheck_AllowsFromImportWhenModuleAllowedButNameIsNot(t *testing.T) {
	v := New([]string{"collections"})
	res, err := v.Check(context.Background(), "from collections import OrderedDict\n")
	require.NoError(t, err)
	assert.True(t, res.OK)
	require.NotNil(t, res.Tree)
	res.Tree.Close()
}

func TestCheck_SyntaxError(t *testing.T) {
	v := newValidator()
	res, err := v.Check(context.Background(), "def broken(:\n    pass\n")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, model.ErrSyntaxError, res.Kind)
}

func TestCheck_AliasDoesNotBypassAllowlist(t *testing.T) {
	v := newValidator()
	res, err := v.Check(context.Background(), "import socket as net\n")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, model.ErrPolicyViolation, res.Kind)
}
