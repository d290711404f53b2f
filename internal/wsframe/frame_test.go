package wsframe

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRead_RoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		opcode  Opcode
		payload []byte
	}{
		{"empty text", OpText, []byte{}},
		{"short text", OpText, []byte("hello")},
		{"boundary 125", OpText, bytes.Repeat([]byte{'a'}, 125)},
		{"boundary 126 extended16", OpText, bytes.Repeat([]byte{'b'}, 126)},
		{"large extended64", OpText, bytes.Repeat([]byte{'c'}, 70000)},
		{"ping", OpPing, []byte("ping-payload")},
		{"pong", OpPong, []byte("pong-payload")},
		{"close", OpClose, []byte{0x03, 0xE8}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, tc.opcode, tc.payload))

			frame, err := Read(&buf)
			require.NoError(t, err)
			assert.True(t, frame.Fin)
			assert.Equal(t, tc.opcode, frame.Opcode)
			assert.Equal(t, tc.payload, frame.Payload)
		})
	}
}

func TestWrite_MasksEveryFrame(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("plaintext")
	require.NoError(t, Write(&buf, OpText, payload))

	encoded := buf.Bytes()
	require.True(t, len(encoded) >= 2+4+len(payload))
	maskBit := encoded[1] & 0x80
	assert.NotZero(t, maskBit, "client frames must set the MASK bit")

	// the raw wire bytes must not equal the plaintext payload verbatim
	// (i.e. masking actually changed something, barring the 1/2^32 case
	// of an all-zero mask).
	wirePayload := encoded[len(encoded)-len(payload):]
	assert.NotEqual(t, payload, wirePayload)
}

func TestRead_ToleratesUnmaskedServerFrame(t *testing.T) {
	// Servers should not mask, but a compliant client must still parse
	// one correctly if it arrives.
	payload := []byte("server says hi")
	var buf bytes.Buffer
	buf.WriteByte(0x80 | byte(OpText))
	buf.WriteByte(byte(len(payload))) // MASK bit clear
	buf.Write(payload)

	frame, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, payload, frame.Payload)
}

func TestRead_RejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(0x80 | byte(OpBinary))
	buf.WriteByte(127)
	var ext [8]byte
	ext[0] = 0xFF // absurdly large length
	buf.Write(ext[:])

	_, err := Read(&buf)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, `{"cmd":"events.stream"}`))

	frame, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, OpText, frame.Opcode)
	assert.Equal(t, `{"cmd":"events.stream"}`, string(frame.Payload))
}
