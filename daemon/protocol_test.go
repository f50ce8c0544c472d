package daemon_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yiny1/simplefs/daemon"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, daemon.WriteFrame(&buf, []byte("hello")))

	payload, err := daemon.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(payload))
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	header := []byte{0xff, 0xff, 0xff, 0xff}
	buf.Write(header)

	_, err := daemon.ReadFrame(&buf)
	assert.Error(t, err)
}
