package proto

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadMessage(t *testing.T) {
	var buf bytes.Buffer

	req := NewRequest(OpSet, []string{"system", "hostname"}, "router1")
	require.NoError(t, WriteMessage(&buf, req))

	var got Request
	require.NoError(t, ReadMessage(&buf, &got))
	assert.Equal(t, req, got)
}

func TestNewRequestAssignsID(t *testing.T) {
	a := NewRequest(OpCommit, nil, "")
	b := NewRequest(OpCommit, nil, "")

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestReadMessageTruncatedHeader(t *testing.T) {
	var got Request
	err := ReadMessage(bytes.NewReader([]byte{0, 0}), &got)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReadMessageTruncatedBody(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, NewRequest(OpGet, []string{"a"}, "")))

	truncated := buf.Bytes()[:buf.Len()-3]

	var got Request
	err := ReadMessage(bytes.NewReader(truncated), &got)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReadMessageOversizedFrame(t *testing.T) {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], MaxFrameSize+1)

	var got Request
	err := ReadMessage(bytes.NewReader(hdr[:]), &got)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadMessageMalformedBody(t *testing.T) {
	body := []byte("{not json")
	var buf bytes.Buffer
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(body)))
	buf.Write(hdr[:])
	buf.Write(body)

	var got Request
	err := ReadMessage(&buf, &got)
	assert.ErrorIs(t, err, ErrMalformed)
}
