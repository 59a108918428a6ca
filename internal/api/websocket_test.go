package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/bookmarkd/internal/session"
	"github.com/gorilla/websocket"
)

type wsReply struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	DocID string `json:"doc_id"`
	Error string `json:"error"`
}

func dialEvents(t *testing.T, ts *httptest.Server, docID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/documents/" + docID + "/events?token=" + testAPIKey
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(v); err != nil {
		t.Fatalf("read: %v", err)
	}
}

func TestEvents_AnnotationsChanged(t *testing.T) {
	ts := newTestServer(t)
	putOutline(t, ts, "doc-1", sampleOutline)
	conn := dialEvents(t, ts, "doc-1")

	var hello struct {
		Type  string          `json:"type"`
		DocID string          `json:"doc_id"`
		Data  session.Summary `json:"data"`
	}
	readMessage(t, conn, &hello)
	if hello.Type != msgDocumentLoaded || hello.DocID != "doc-1" || hello.Data.Bookmarks != 3 {
		t.Errorf("unexpected greeting %+v", hello)
	}

	err := conn.WriteJSON(map[string]any{
		"type": msgAnnotationsChanged,
		"id":   "req-1",
		"events": []map[string]any{
			{"id": "x", "page": 2, "y": 25},
			{"id": "y", "page": 1, "y": 1},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	var resolved struct {
		Type string               `json:"type"`
		ID   string               `json:"id"`
		Data []session.Resolution `json:"data"`
	}
	readMessage(t, conn, &resolved)
	if resolved.Type != msgResolved || resolved.ID != "req-1" {
		t.Fatalf("expected resolved req-1, got %q %q", resolved.Type, resolved.ID)
	}
	if len(resolved.Data) != 2 {
		t.Fatalf("expected 2 resolutions, got %d", len(resolved.Data))
	}
	if resolved.Data[0].Parent == nil || resolved.Data[0].Parent.Name != "C" {
		t.Errorf("expected x under C, got %+v", resolved.Data[0])
	}
	if resolved.Data[1].Found {
		t.Errorf("expected y without parent, got %+v", resolved.Data[1])
	}
}

func TestEvents_PingAndErrors(t *testing.T) {
	ts := newTestServer(t)
	putOutline(t, ts, "doc-1", sampleOutline)
	conn := dialEvents(t, ts, "doc-1")

	var msg wsReply
	readMessage(t, conn, &msg) // documentLoaded

	conn.WriteJSON(map[string]string{"type": msgPing, "id": "p1"})
	readMessage(t, conn, &msg)
	if msg.Type != msgPong || msg.ID != "p1" {
		t.Errorf("expected pong p1, got %+v", msg)
	}

	conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
	readMessage(t, conn, &msg)
	if msg.Type != msgError {
		t.Errorf("expected error for invalid json, got %+v", msg)
	}

	conn.WriteJSON(map[string]string{"type": "subscribe"})
	readMessage(t, conn, &msg)
	if msg.Type != msgError || !strings.Contains(msg.Error, "subscribe") {
		t.Errorf("expected error for unknown type, got %+v", msg)
	}
}

func TestEvents_BroadcastFromHTTP(t *testing.T) {
	ts := newTestServer(t)
	putOutline(t, ts, "doc-1", sampleOutline)
	conn := dialEvents(t, ts, "doc-1")

	var msg wsReply
	readMessage(t, conn, &msg) // documentLoaded

	events := `{"events": [{"id": "x", "page": 1, "y": 30}]}`
	doRequest(t, http.MethodPost, ts.URL+"/api/documents/doc-1/annotations", strings.NewReader(events), "application/json")
	readMessage(t, conn, &msg)
	if msg.Type != msgResolved {
		t.Errorf("expected resolved broadcast, got %+v", msg)
	}

	putOutline(t, ts, "doc-1", `{"page_count": 1, "bookmarks": [{"name": "Only", "page": 1, "y": 0}]}`)
	readMessage(t, conn, &msg)
	if msg.Type != msgDocumentLoaded {
		t.Errorf("expected documentLoaded after replace, got %+v", msg)
	}

	doRequest(t, http.MethodDelete, ts.URL+"/api/documents/doc-1", nil, "")
	readMessage(t, conn, &msg)
	if msg.Type != msgDocumentRemoved {
		t.Errorf("expected documentRemoved, got %+v", msg)
	}
}

func TestEvents_Rejected(t *testing.T) {
	ts := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/documents/missing/events?token=" + testAPIKey
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected dial to fail for a missing document")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %v", resp)
	}

	putOutline(t, ts, "doc-1", sampleOutline)
	wsURL = "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/documents/doc-1/events?token=wrong"
	_, resp, err = websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for a wrong token, got %v", resp)
	}
}
