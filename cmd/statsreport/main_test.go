package main

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runReport(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestReport_PrintsThroughputAndDelay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.rx.dat")
	require.NoError(t, os.WriteFile(path, []byte(
		"s[T,D,AA->BB,100(112),1,0,0,0,0.000]\n"+
			"s[R,D,BB->AA,100(112),1,0,0,0,4.000]\n"+
			"noise\n"+
			"s[T,D,AA->BB,100(112),2,0,0,0,10.000]\n"+
			"s[R,D,BB->AA,100(112),2,0,0,0,18.000]\n"), 0o600))

	out, err := runReport(t, "--window", "4s", path)
	require.NoError(t, err)

	assert.Contains(t, out, path+": 4 records")
	assert.Contains(t, out, "throughput: 50.00 B/s (200 bytes in 4s)")
	assert.Contains(t, out, "delay: mean 6.000 std 2.000 (2 sequences)")
}

func TestReport_DefaultWindowIsOneMinute(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.rx.dat")
	require.NoError(t, os.WriteFile(path, []byte("s[R,D,BB->AA,120(130),1,0,0,0]\n"), 0o600))

	out, err := runReport(t, path)
	require.NoError(t, err)
	assert.Contains(t, out, "throughput: 2.00 B/s (120 bytes in 1m0s)")
	assert.Contains(t, out, "(0 sequences)")
}

func TestReport_Errors(t *testing.T) {
	_, err := runReport(t)
	assert.Error(t, err)

	_, err = runReport(t, filepath.Join(t.TempDir(), "absent.dat"))
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = runReport(t, "--window", "0s", "whatever")
	assert.ErrorContains(t, err, "window must be positive")
}
