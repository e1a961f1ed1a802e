package executil

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealExecutor_Output(t *testing.T) {
	e := &RealExecutor{}

	out, err := e.Output(context.Background(), "echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))
}

func TestRealExecutor_OutputDir(t *testing.T) {
	e := &RealExecutor{}
	dir := t.TempDir()

	out, err := e.OutputDir(context.Background(), dir, "pwd")
	require.NoError(t, err)
	assert.Contains(t, strings.TrimSpace(string(out)), dir)
}

func TestRealExecutor_OutputError(t *testing.T) {
	e := &RealExecutor{}

	_, err := e.Output(context.Background(), "sh", "-c", "echo boom >&2; exit 3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode())
}

func TestLimitedWriter_CapsOutput(t *testing.T) {
	var buf bytes.Buffer
	w := &limitedWriter{buf: &buf, max: 10}

	n, err := w.Write([]byte("0123456789abcdef"))
	require.NoError(t, err)

	// Reports full length so the writer never stalls the pipe.
	assert.Equal(t, 16, n)
	assert.Equal(t, "0123456789", buf.String())

	n, err = w.Write([]byte("more"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "0123456789", buf.String())
}
