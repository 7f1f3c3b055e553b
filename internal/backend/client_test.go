package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCreateConversation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/conversations" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["title"] != "SMS with +15550001111" || body["channel"] != "sms" {
			t.Errorf("body = %v", body)
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "conv-42"})
	}))
	defer srv.Close()

	client := New(srv.URL, "test-key")
	id, err := client.CreateConversation(context.Background(), "SMS with +15550001111", "sms")
	if err != nil {
		t.Fatal(err)
	}
	if id != "conv-42" {
		t.Errorf("id = %q, want conv-42", id)
	}
}

func TestCreateConversationMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	if _, err := New(srv.URL, "").CreateConversation(context.Background(), "t", "sms"); err == nil {
		t.Error("expected error for empty conversation id")
	}
}

func TestSendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["conversation_id"] != "conv-42" || body["text"] != "hello" {
			t.Errorf("body = %v", body)
		}
		if !strings.Contains(body["system"], "SMS") {
			t.Errorf("system prompt not forwarded: %v", body)
		}
		json.NewEncoder(w).Encode(map[string]string{"reply": "hi there"})
	}))
	defer srv.Close()

	reply, err := New(srv.URL, "").SendMessage(context.Background(), "conv-42", "hello", "You are replying over SMS.", "sms")
	if err != nil {
		t.Fatal(err)
	}
	if reply != "hi there" {
		t.Errorf("reply = %q", reply)
	}
}

func TestSendMessageAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "rate limited"})
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").SendMessage(context.Background(), "conv-42", "hello", "", "sms")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "rate limited") || !strings.Contains(err.Error(), "429") {
		t.Errorf("error = %v", err)
	}
}

func TestSendMessageBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	if _, err := New(srv.URL, "").SendMessage(context.Background(), "conv-42", "hello", "", "sms"); err == nil {
		t.Error("expected error for invalid response body")
	}
}

func TestNoAuthHeaderWithoutKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["Authorization"]; ok {
			t.Error("Authorization header sent without api key")
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "conv-1"})
	}))
	defer srv.Close()

	if _, err := New(srv.URL, "").CreateConversation(context.Background(), "t", "sms"); err != nil {
		t.Fatal(err)
	}
}
