package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"signaged/proto"
)

func newTestWebServer(t *testing.T) (*httptest.Server, *SyncEngine) {
	t.Helper()
	engine := newTestEngine()
	commands := startCommands(t, engine)
	web := NewWebServer("127.0.0.1:0", engine, commands, NewEventBroker())

	ts := httptest.NewServer(web.routes())
	t.Cleanup(ts.Close)
	return ts, engine
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("Failed to decode response from %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	return resp
}

func TestWebServer_ListScreens(t *testing.T) {
	ts, engine := newTestWebServer(t)

	client := newMockClient("conn-1")
	screenID := registerScreen(t, engine, client, "")

	var screens []Screen
	if status := getJSON(t, ts.URL+"/api/screens", &screens); status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	if len(screens) != 1 || screens[0].ID != screenID {
		t.Errorf("Expected the registered screen, got %+v", screens)
	}
}

func TestWebServer_GetScreen_NotFound(t *testing.T) {
	ts, _ := newTestWebServer(t)

	if status := getJSON(t, ts.URL+"/api/screens/nonexistent", nil); status != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown screen, got %d", status)
	}
}

func TestWebServer_PutLayout_PushesToScreen(t *testing.T) {
	ts, engine := newTestWebServer(t)

	client := newMockClient("conn-1")
	screenID := registerScreen(t, engine, client, "")

	resp := doJSON(t, http.MethodPut, ts.URL+"/api/screens/"+screenID+"/layout", testLayout("hello"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	update := client.lastSent(t)
	if update.Type != proto.TypeLayoutUpdate {
		t.Fatalf("Expected layout_update push, got %s", update.Type)
	}
	var p proto.LayoutUpdatePayload
	decodePayload(t, update, &p)
	if p.Version != 1 {
		t.Errorf("Expected version 1, got %d", p.Version)
	}
}

func TestWebServer_PutLayout_UnknownScreen(t *testing.T) {
	ts, _ := newTestWebServer(t)

	resp := doJSON(t, http.MethodPut, ts.URL+"/api/screens/nonexistent/layout", testLayout("x"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestWebServer_PutLayout_InvalidBody(t *testing.T) {
	ts, engine := newTestWebServer(t)
	screenID := registerScreen(t, engine, newMockClient("conn-1"), "")

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/screens/"+screenID+"/layout", bytes.NewBufferString("{not json"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed layout, got %d", resp.StatusCode)
	}
}

func TestWebServer_Rename(t *testing.T) {
	ts, engine := newTestWebServer(t)
	screenID := registerScreen(t, engine, newMockClient("conn-1"), "")

	resp := doJSON(t, http.MethodPut, ts.URL+"/api/screens/"+screenID, map[string]string{"name": "Lobby"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	screen, ok := engine.GetScreen(screenID)
	if !ok || screen.Name != "Lobby" {
		t.Errorf("Expected renamed screen, got %+v", screen)
	}
}

func TestWebServer_Rename_MissingName(t *testing.T) {
	ts, engine := newTestWebServer(t)
	screenID := registerScreen(t, engine, newMockClient("conn-1"), "")

	resp := doJSON(t, http.MethodPut, ts.URL+"/api/screens/"+screenID, map[string]string{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestWebServer_DeleteScreen(t *testing.T) {
	ts, engine := newTestWebServer(t)

	client := newMockClient("conn-1")
	screenID := registerScreen(t, engine, client, "")

	resp := doJSON(t, http.MethodDelete, ts.URL+"/api/screens/"+screenID, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	if len(engine.ListScreens()) != 0 {
		t.Error("Expected no screens after delete")
	}
	if !client.isClosed() {
		t.Error("Expected the screen connection to be closed")
	}
}

func TestWebServer_BroadcastLayout(t *testing.T) {
	ts, engine := newTestWebServer(t)

	a := newMockClient("conn-a")
	b := newMockClient("conn-b")
	registerScreen(t, engine, a, "")
	registerScreen(t, engine, b, "")

	resp := doJSON(t, http.MethodPut, ts.URL+"/api/layouts", testLayout("everywhere"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	for _, c := range []*mockClient{a, b} {
		if got := c.lastSent(t); got.Type != proto.TypeLayoutUpdate {
			t.Errorf("Expected layout_update on %s, got %s", c.metadata.Id, got.Type)
		}
	}
}

func TestWebServer_Health(t *testing.T) {
	ts, _ := newTestWebServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}
