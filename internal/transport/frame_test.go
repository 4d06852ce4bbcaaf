package transport

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	f := Frame{TypeTag: "ping", Body: []byte("hello")}

	data, err := EncodeFrame(f)
	require.NoError(t, err)

	got, err := DecodeFrame(data)
	require.NoError(t, err)
	require.Equal(t, f, got)
}

func TestDecodeFrameRejectsGarbage(t *testing.T) {
	_, err := DecodeFrame([]byte{0xff, 0x00, 0x01})
	require.Error(t, err)
}

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	f := Frame{TypeTag: "naming_register", Body: []byte("payload")}

	require.NoError(t, WriteFrame(&buf, f))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, f, got)
}

func TestReadFrameMultipleInSequence(t *testing.T) {
	var buf bytes.Buffer
	first := Frame{TypeTag: "a", Body: []byte("1")}
	second := Frame{TypeTag: "b", Body: []byte("2")}
	require.NoError(t, WriteFrame(&buf, first))
	require.NoError(t, WriteFrame(&buf, second))

	got1, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, first, got1)

	got2, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, second, got2)
}
