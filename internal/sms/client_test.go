package sms

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewGatewayClient_Defaults(t *testing.T) {
	client := NewGatewayClient("api-key", "", "")
	if client.APIKey != "api-key" {
		t.Errorf("APIKey = %q, want %q", client.APIKey, "api-key")
	}
	if client.BaseURL == "" {
		t.Error("BaseURL should default to the gateway endpoint")
	}
	if client.HTTPClient == nil {
		t.Fatal("HTTPClient should be set")
	}
	if client.HTTPClient.Timeout != defaultTimeout {
		t.Errorf("HTTPClient.Timeout = %v, want %v", client.HTTPClient.Timeout, defaultTimeout)
	}
}

func TestNewGatewayClient_CustomBaseURL(t *testing.T) {
	customURL := "https://custom.gateway/api"
	client := NewGatewayClient("api-key", customURL, "MARCHAND")
	if client.BaseURL != customURL {
		t.Errorf("BaseURL = %q, want %q", client.BaseURL, customURL)
	}
	if client.Sender != "MARCHAND" {
		t.Errorf("Sender = %q, want MARCHAND", client.Sender)
	}
}

func TestSendCode_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want %q", r.Method, http.MethodPost)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("Authorization") != "test-api-key" {
			t.Errorf("Authorization = %q, want test-api-key", r.Header.Get("Authorization"))
		}

		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Decode body: %v", err)
		}
		if body["to"] != "2250701234567" {
			t.Errorf("to = %v, want 2250701234567", body["to"])
		}
		msg, _ := body["message"].(string)
		if !strings.Contains(msg, "123456") {
			t.Errorf("message = %q, want to contain the code", msg)
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"sent"}`))
	}))
	defer server.Close()

	client := NewGatewayClient("test-api-key", server.URL, "")
	if err := client.SendCode("2250701234567", "123456"); err != nil {
		t.Fatalf("SendCode: %v", err)
	}
}

func TestSendCode_MissingAPIKey(t *testing.T) {
	client := NewGatewayClient("", "", "")
	err := client.SendCode("2250701234567", "123456")
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
	if !strings.Contains(err.Error(), "API key not configured") {
		t.Errorf("error message = %q, want to contain 'API key not configured'", err.Error())
	}
}

func TestSendCode_Non200Status(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid number"}`))
	}))
	defer server.Close()

	client := NewGatewayClient("api-key", server.URL, "")
	err := client.SendCode("not-a-number", "123456")
	if err == nil {
		t.Fatal("expected error for non-200 status")
	}
	if !strings.Contains(err.Error(), "status=400") {
		t.Errorf("error message = %q, want to contain 'status=400'", err.Error())
	}
	if !strings.Contains(err.Error(), "invalid number") {
		t.Errorf("error message = %q, want to contain response body", err.Error())
	}
}
