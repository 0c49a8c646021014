package process

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOneLine(t *testing.T) {
	r := New(context.Background(), nil, "echo", "hello")
	line, err := r.OneLine()
	require.NoError(t, err)
	assert.Equal(t, "hello", line)
}

func TestExitErrorCarriesStderr(t *testing.T) {
	r := New(context.Background(), nil, "sh", "-c", "echo boom 1>&2; exit 3")
	_, err := r.Output()
	require.Error(t, err)
	var ee *ExitError
	require.ErrorAs(t, err, &ee)
	assert.Contains(t, ee.Stderr, "boom")
	assert.Equal(t, 3, ee.ExitCode())
}
