package live

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dial(t *testing.T, srv *httptest.Server, page string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/live/" + page
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if mt != websocket.BinaryMessage {
		t.Fatalf("Expected binary frame, got %d", mt)
	}
	return data
}

func readHello(t *testing.T, conn *websocket.Conn) uint64 {
	t.Helper()
	data := readFrame(t, conn)
	if MessageType(data[0]) != FrameControl {
		t.Fatalf("Expected control frame, got %x", data[0])
	}
	d := NewDecoder(bytes.NewReader(data[1:]))
	msg, _ := d.ReadString()
	seq, err := d.ReadUvarint()
	if msg != "HELLO" || err != nil {
		t.Fatalf("Expected HELLO, got %q %v", msg, err)
	}
	return seq
}

func newServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	live := NewServer("/live")
	mux := http.NewServeMux()
	mux.Handle("/live/", live)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		live.Close()
		srv.Close()
	})
	return live, srv
}

func TestPublishReachesWatchers(t *testing.T) {
	live, srv := newServer(t)
	home := dial(t, srv, "home")
	about := dial(t, srv, "about")
	if seq := readHello(t, home); seq != 0 {
		t.Errorf("Expected version 0, got %d", seq)
	}
	readHello(t, about)

	u := live.Publish(Update{Page: "home", Hash: "abc", Document: "<template>\n</template>\n"})
	if u.Version != 1 {
		t.Errorf("Expected version 1, got %d", u.Version)
	}

	got, err := DecodeUpdate(readFrame(t, home))
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 1 || got.Hash != "abc" || got.Document != u.Document {
		t.Errorf("Unexpected update %+v", got)
	}

	about.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := about.ReadMessage(); err == nil {
		t.Error("Expected no update for another page")
	}
	if n := live.Sessions("home"); n != 1 {
		t.Errorf("Expected 1 home session, got %d", n)
	}
}

func TestLateJoinerGetsLatest(t *testing.T) {
	live, srv := newServer(t)
	live.Publish(Update{Page: "home", Document: "v1"})
	live.Publish(Update{Page: "home", Document: "v2", Diagnostics: []string{"1:1: skipped"}})

	conn := dial(t, srv, "home")
	if seq := readHello(t, conn); seq != 2 {
		t.Errorf("Expected version 2 in HELLO, got %d", seq)
	}
	got, err := DecodeUpdate(readFrame(t, conn))
	if err != nil {
		t.Fatal(err)
	}
	if got.Document != "v2" || len(got.Diagnostics) != 1 {
		t.Errorf("Expected latest revision, got %+v", got)
	}

	// A client that fell behind asks again with its last version.
	if err := conn.WriteMessage(websocket.BinaryMessage, EncodeControl("HELLO", 1)); err != nil {
		t.Fatal(err)
	}
	if got, err := DecodeUpdate(readFrame(t, conn)); err != nil || got.Version != 2 {
		t.Errorf("Expected resend of version 2, got %+v %v", got, err)
	}
}

func TestSelectAndPing(t *testing.T) {
	live, srv := newServer(t)
	conn := dial(t, srv, "home")
	readHello(t, conn)

	conn.WriteMessage(websocket.BinaryMessage, EncodeSelect("k1"))
	select {
	case sel := <-live.Selections():
		if sel.Key != "k1" || sel.Page != "home" || sel.Session == "" {
			t.Errorf("Unexpected selection %+v", sel)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected a selection")
	}

	conn.WriteMessage(websocket.BinaryMessage, EncodeControl("PING"))
	data := readFrame(t, conn)
	msg, _ := NewDecoder(bytes.NewReader(data[1:])).ReadString()
	if msg != "PONG" {
		t.Errorf("Expected PONG, got %q", msg)
	}
}

func TestPageRequired(t *testing.T) {
	_, srv := newServer(t)
	resp, err := http.Get(srv.URL + "/live/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestDecodeUpdateRejectsGarbage(t *testing.T) {
	if _, err := DecodeUpdate([]byte{byte(FrameSelect), 1}); err == nil {
		t.Error("Expected error for wrong frame type")
	}
	frame := EncodeUpdate(Update{Page: "home", Document: "doc"})
	if _, err := DecodeUpdate(frame[:len(frame)-3]); err == nil {
		t.Error("Expected error for truncated frame")
	}
}
