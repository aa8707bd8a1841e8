package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/surya-d-naidu/HealthCareBot/conversation"
	"github.com/surya-d-naidu/HealthCareBot/logger"
	"github.com/surya-d-naidu/HealthCareBot/modelapi"
)

type stubGateway struct {
	text string
	err  error
}

func (g stubGateway) Complete(ctx context.Context, p modelapi.Prompt) (string, error) {
	return g.text, g.err
}

func (g stubGateway) Stream(ctx context.Context, p modelapi.Prompt) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if g.err != nil {
			yield("", g.err)
			return
		}
		for _, w := range strings.Fields(g.text) {
			if !yield(w, nil) {
				return
			}
		}
	}
}

var testScripts = conversation.Scripts{
	conversation.TopicHealthAnalysis:    {"What's your age?"},
	conversation.TopicFriendlyCompanion: {conversation.RatingQuestion},
	conversation.TopicEmergencySupport:  {},
}

func newTestServer(t *testing.T, gw modelapi.Gateway) *httptest.Server {
	t.Helper()
	log := logger.Connect(logger.LoggerConnectProps{Silent: true})
	engine := conversation.NewEngine(conversation.EngineConnectProps{
		Logger:    log,
		Store:     conversation.NewStore(conversation.StoreConnectProps{Logger: log}),
		Gateway:   gw,
		Scripts:   testScripts,
		Escalator: conversation.NewEscalator(conversation.EscalatorConnectProps{Logger: log, Delay: time.Millisecond}),
	})
	server := httptest.NewServer(NewHandler(ServerConnectProps{Logger: log, Engine: engine}))
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeChat(t *testing.T, resp *http.Response) ChatResponse {
	t.Helper()
	defer resp.Body.Close()
	var out ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestChatFlow(t *testing.T) {
	server := newTestServer(t, stubGateway{text: "  Take it one step at a time.  "})

	resp := postJSON(t, server.URL+"/api/chat", ChatRequest{Topic: "friendlyCompanion", UserMessage: "hi"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	first := decodeChat(t, resp)
	if first.ConversationID == "" {
		t.Fatal("expected a generated conversation id")
	}
	if first.Result != conversation.RatingQuestion || first.Stage != "askNext" {
		t.Errorf("unexpected first reply %+v", first)
	}
	if _, err := time.Parse(time.RFC3339, first.Timestamp); err != nil {
		t.Errorf("timestamp %q: %v", first.Timestamp, err)
	}

	second := decodeChat(t, postJSON(t, server.URL+"/api/chat", ChatRequest{
		ConversationID: first.ConversationID,
		Topic:          "friendlyCompanion",
		UserMessage:    "9",
	}))
	if second.Result != "Take it one step at a time." {
		t.Errorf("result %q", second.Result)
	}
	if !second.Emergency || second.Resources == nil || second.Resources.SuicidePrevention != "988" {
		t.Errorf("expected emergency resources, got %+v", second)
	}

	get, err := http.Get(server.URL + "/api/conversations/" + first.ConversationID)
	if err != nil {
		t.Fatal(err)
	}
	defer get.Body.Close()
	var view struct {
		Mode             string `json:"mode"`
		EmergencyFlagged bool   `json:"emergencyFlagged"`
		Answers          []struct {
			Question string `json:"question"`
			Answer   string `json:"answer"`
		} `json:"answers"`
		History []conversation.Message `json:"history"`
	}
	if err := json.NewDecoder(get.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	if view.Mode != "freeChat" || !view.EmergencyFlagged || len(view.Answers) != 1 || len(view.History) != 2 {
		t.Errorf("unexpected view %+v", view)
	}
}

func TestChatValidation(t *testing.T) {
	server := newTestServer(t, stubGateway{text: "ok"})

	cases := map[string]string{
		"bad json":      `{"topic":`,
		"unknown topic": `{"topic":"smallTalk","userMessage":"hi"}`,
		"no message":    `{"topic":"healthAnalysis","userMessage":"   "}`,
	}
	for name, body := range cases {
		for _, path := range []string{"/api/chat", "/api/chat/stream"} {
			resp, err := http.Post(server.URL+path, "application/json", strings.NewReader(body))
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("%s %s: status %d", name, path, resp.StatusCode)
			}
		}
	}
}

func TestChatGatewayFailure(t *testing.T) {
	server := newTestServer(t, stubGateway{err: errors.New("upstream down")})

	first := decodeChat(t, postJSON(t, server.URL+"/api/chat", ChatRequest{ConversationID: "c1", Topic: "healthAnalysis", UserMessage: "hi"}))
	if first.Result != "What's your age?" {
		t.Fatalf("unexpected reply %+v", first)
	}

	resp := postJSON(t, server.URL+"/api/chat", ChatRequest{ConversationID: "c1", Topic: "healthAnalysis", UserMessage: "40"})
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status %d", resp.StatusCode)
	}
	out := decodeChat(t, resp)
	if out.Result != modelapi.APOLOGY_MESSAGE {
		t.Errorf("expected the apology, got %q", out.Result)
	}
	if strings.Contains(out.Error, "upstream down") {
		t.Error("internal error details leaked to the client")
	}
}

func TestChatStream(t *testing.T) {
	server := newTestServer(t, stubGateway{text: "Rest well\nand hydrate"})

	postJSON(t, server.URL+"/api/chat", ChatRequest{ConversationID: "c1", Topic: "healthAnalysis", UserMessage: "hi"}).Body.Close()

	resp := postJSON(t, server.URL+"/api/chat/stream", ChatRequest{ConversationID: "c1", Topic: "healthAnalysis", UserMessage: "40"})
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}

	var seen []string
	res, err := ReadStream(resp.Body, func(c string) { seen = append(seen, c) })
	if err != nil {
		t.Fatal(err)
	}
	if res.Result != "Rest well and hydrate" || len(seen) != 4 {
		t.Errorf("result %q from %v", res.Result, seen)
	}
	if res.Meta == nil || res.Meta.ConversationID != "c1" || res.Meta.Result != res.Result || res.Meta.Stage != "beginFreeChat" {
		t.Errorf("unexpected meta %+v", res.Meta)
	}
}

func TestChatStreamGatewayFailure(t *testing.T) {
	server := newTestServer(t, stubGateway{err: errors.New("upstream down")})
	postJSON(t, server.URL+"/api/chat", ChatRequest{ConversationID: "c1", Topic: "healthAnalysis", UserMessage: "hi"}).Body.Close()

	resp := postJSON(t, server.URL+"/api/chat/stream", ChatRequest{ConversationID: "c1", Topic: "healthAnalysis", UserMessage: "40"})
	defer resp.Body.Close()

	res, err := ReadStream(resp.Body, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Error != modelapi.APOLOGY_MESSAGE || res.Meta != nil {
		t.Errorf("unexpected stream %+v", res)
	}
}

func TestClearConversation(t *testing.T) {
	server := newTestServer(t, stubGateway{text: "ok"})

	clear := func(id string) int {
		req, _ := http.NewRequest(http.MethodDelete, server.URL+"/api/conversations/"+id, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if status := clear("unknown"); status != http.StatusNoContent {
		t.Errorf("clearing an unknown id: status %d", status)
	}

	postJSON(t, server.URL+"/api/chat", ChatRequest{ConversationID: "c1", Topic: "healthAnalysis", UserMessage: "hi"}).Body.Close()
	if status := clear("c1"); status != http.StatusNoContent {
		t.Errorf("status %d", status)
	}
	resp, _ := http.Get(server.URL + "/api/conversations/c1")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("cleared conversation still readable: %d", resp.StatusCode)
	}

	again := decodeChat(t, postJSON(t, server.URL+"/api/chat", ChatRequest{ConversationID: "c1", Topic: "healthAnalysis", UserMessage: "hi"}))
	if again.Result != "What's your age?" {
		t.Errorf("conversation did not restart: %q", again.Result)
	}
}

func TestTopicsAndHealth(t *testing.T) {
	server := newTestServer(t, stubGateway{text: "ok"})

	resp, err := http.Get(server.URL + "/api/topics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var topics []TopicResponse
	if err := json.NewDecoder(resp.Body).Decode(&topics); err != nil {
		t.Fatal(err)
	}
	if len(topics) != 3 || topics[2].Topic != conversation.TopicEmergencySupport || len(topics[2].Questions) != 0 {
		t.Errorf("unexpected topics %+v", topics)
	}

	health, _ := http.Get(server.URL + "/healthz")
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Errorf("healthz status %d", health.StatusCode)
	}
}

func TestCORS(t *testing.T) {
	server := newTestServer(t, stubGateway{text: "ok"})

	req, _ := http.NewRequest(http.MethodOptions, server.URL+"/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.Header.Get("Access-Control-Allow-Origin") == "" {
		t.Error("preflight did not allow the origin")
	}
}

func TestReadStreamMultiline(t *testing.T) {
	stream := "data: first line\ndata: second line\n\n: keepalive\n\ndata: next\n\nevent: meta\ndata: {\"result\":\"x\",\"conversationId\":\"c\"}\n\n"
	res, err := ReadStream(strings.NewReader(stream), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Chunks) != 2 || res.Chunks[0] != "first line\nsecond line" {
		t.Errorf("chunks %q", res.Chunks)
	}
	if res.Meta == nil || res.Meta.ConversationID != "c" {
		t.Errorf("meta %+v", res.Meta)
	}
}
