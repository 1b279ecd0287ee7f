package stomp

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gorilla/websocket"

	"github.com/desertthunder/evalwatch/internal/shared"
)

// wsPair returns both ends of a live WebSocket connection.
func wsPair(t *testing.T) (client *websocket.Conn, server *websocket.Conn) {
	t.Helper()
	accepted := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		accepted <- conn
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	select {
	case server = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("server side never accepted")
	}
	t.Cleanup(func() { server.Close() })
	return client, server
}

func TestWSConn(t *testing.T) {
	t.Run("a large frame goes out as one message", func(t *testing.T) {
		client, server := wsPair(t)
		ws := newWSConn(client)

		body := bytes.Repeat([]byte("x"), 10_000)
		f := frame.New(frame.SEND, frame.Destination, "/topic/progress/r1")
		f.Body = body
		if err := frame.NewWriter(ws).Write(f); err != nil {
			t.Fatalf("write failed: %v", err)
		}

		_, data, err := server.ReadMessage()
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if data[len(data)-1] != 0 {
			t.Fatalf("message must end the frame, got %q", data[len(data)-10:])
		}
		got, err := frame.NewReader(bytes.NewReader(data)).Read()
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if got.Command != frame.SEND || !bytes.Equal(got.Body, body) {
			t.Errorf("unexpected frame %s with %d body bytes", got.Command, len(got.Body))
		}
	})

	t.Run("heart-beats are sent on their own", func(t *testing.T) {
		client, server := wsPair(t)
		ws := newWSConn(client)

		if _, err := ws.Write([]byte("\n")); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		_, data, err := server.ReadMessage()
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if string(data) != "\n" {
			t.Errorf("expected a heart-beat, got %q", data)
		}
	})

	t.Run("a frame may span messages", func(t *testing.T) {
		client, server := wsPair(t)
		ws := newWSConn(client)

		for _, part := range []string{"\n", "MESSAGE\nsubscription:s1\ndestination:/topic/x\n\nhel", "lo\x00"} {
			if err := server.WriteMessage(websocket.TextMessage, []byte(part)); err != nil {
				t.Fatalf("write failed: %v", err)
			}
		}

		r := frame.NewReader(ws)
		var got *frame.Frame
		for got == nil {
			f, err := r.Read()
			if err != nil {
				t.Fatalf("read failed: %v", err)
			}
			got = f
		}
		if got.Command != frame.MESSAGE || got.Header.Get(frame.Subscription) != "s1" || string(got.Body) != "hello" {
			t.Errorf("unexpected frame %s %q", got.Command, got.Body)
		}
	})

	t.Run("peer hang-up is a transport failure", func(t *testing.T) {
		client, server := wsPair(t)
		ws := newWSConn(client)

		server.Close()
		if _, err := ws.Read(make([]byte, 16)); !errors.Is(err, shared.ErrTransportFailure) {
			t.Errorf("expected ErrTransportFailure, got %v", err)
		}
		select {
		case <-ws.Done():
		case <-time.After(time.Second):
			t.Fatal("Done not closed")
		}
		if !errors.Is(ws.Err(), shared.ErrTransportFailure) {
			t.Errorf("expected recorded ErrTransportFailure, got %v", ws.Err())
		}
	})

	t.Run("Close is not an error", func(t *testing.T) {
		client, _ := wsPair(t)
		ws := newWSConn(client)

		_ = ws.Close()
		if err := ws.Close(); err != nil {
			t.Errorf("second close should be a no-op, got %v", err)
		}
		if _, err := ws.Read(make([]byte, 16)); err != io.EOF {
			t.Errorf("expected io.EOF after Close, got %v", err)
		}
		if ws.Err() != nil {
			t.Errorf("expected nil Err, got %v", ws.Err())
		}
	})
}

func TestFrameEnds(t *testing.T) {
	tc := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"SEND\n\npartial", false},
		{"SEND\n\nbody\x00", true},
		{"\n", true},
		{"\r\n", true},
	}

	for _, tt := range tc {
		t.Run(strings.NewReplacer("\n", `\n`, "\r", `\r`, "\x00", `\0`).Replace(tt.in), func(t *testing.T) {
			if got := frameEnds([]byte(tt.in)); got != tt.want {
				t.Errorf("frameEnds(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
