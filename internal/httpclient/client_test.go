package httpclient

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatusLine(t *testing.T) {
	cases := []struct {
		line string
		want int
		err  bool
	}{
		{"HTTP/1.1 200 OK\r\n", 200, false},
		{"HTTP/1.1 401 Unauthorized\r\n", 401, false},
		{"garbage\r\n", 0, true},
	}
	for _, tc := range cases {
		got, err := parseStatusLine(tc.line)
		if tc.err {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestReadFirstChunk(t *testing.T) {
	raw := "5\r\nhello\r\n3\r\nbye\r\n0\r\n\r\n"
	r := bufio.NewReader(strings.NewReader(raw))
	chunk, err := readFirstChunk(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(chunk))
}

func TestReadResponse_ContentLength(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		server.SetWriteDeadline(time.Now().Add(time.Second))
		server.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 13\r\n\r\n{\"ok\":true}\r\n"))
	}()

	resp, err := readResponse(client)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, `{"ok":true}`, string(resp.Body[:11]))
}

func TestReadResponse_Chunked(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		server.SetWriteDeadline(time.Now().Add(time.Second))
		server.Write([]byte("HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\nb\r\n{\"ok\":true}\r\n0\r\n\r\n"))
	}()

	resp, err := readResponse(client)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, `{"ok":true}`, string(resp.Body))
}

func TestNew_BasicAuthHeader(t *testing.T) {
	c := New("127.0.0.1:8080", "user", "pass")
	assert.Equal(t, "Basic dXNlcjpwYXNz", c.authHdr)

	anon := New("127.0.0.1:8080", "", "")
	assert.Empty(t, anon.authHdr)
}

func TestBuildRequest(t *testing.T) {
	c := New("127.0.0.1:8080", "user", "pass")
	req := string(c.buildRequest("GET", "/api/state", nil))
	assert.Contains(t, req, "GET /api/state HTTP/1.1\r\n")
	assert.Contains(t, req, "Connection: keep-alive\r\n")
	assert.Contains(t, req, "Authorization: Basic dXNlcjpwYXNz\r\n")
}

func TestBuildRequest_PostIncludesContentLength(t *testing.T) {
	c := New("127.0.0.1:8080", "", "")
	req := string(c.buildRequest("POST", "/api/session", []byte(`{"cmd":"wifi.deauth"}`)))
	assert.Contains(t, req, "POST /api/session HTTP/1.1\r\n")
	assert.Contains(t, req, "Content-Length: 21\r\n")
	assert.Contains(t, req, `{"cmd":"wifi.deauth"}`)
}
