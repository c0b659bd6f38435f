package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Priya-Diwakar/nova-voice-assistant/internal/config"
)

func TestSetKeysMergesIntoStore(t *testing.T) {
	store := config.NewStore(config.Keys{Murf: "old-murf"})
	server := New(store)

	req := httptest.NewRequest("POST", "/set-keys",
		strings.NewReader(`{"gemini":"new-gemini","murf":""}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := server.app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	keys := store.Snapshot()
	if keys.Gemini != "new-gemini" {
		t.Fatalf("expected gemini key updated, got %q", keys.Gemini)
	}
	if keys.Murf != "old-murf" {
		t.Fatalf("expected empty field to leave stored key untouched, got %q", keys.Murf)
	}
}

func TestSetKeysRejectsInvalidBody(t *testing.T) {
	server := New(config.NewStore(config.Keys{}))

	req := httptest.NewRequest("POST", "/set-keys", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := server.app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Fatalf("expected status 400, got %d", resp.StatusCode)
	}
}

func TestUploadAudioFallsBackWhenTranscriptionUnavailable(t *testing.T) {
	server := New(config.NewStore(config.Keys{}))

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "clip.wav")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	part.Write([]byte("not really audio"))
	writer.Close()

	req := httptest.NewRequest("POST", "/upload-audio?persona=pirate", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := server.app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var payload struct {
		InputText    string `json:"input_text"`
		PersonaReply string `json:"persona_reply"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if payload.InputText != "Sorry, I could not understand." {
		t.Fatalf("expected fallback text, got %q", payload.InputText)
	}
	if !strings.Contains(payload.PersonaReply, "Ahoy matey") {
		t.Fatalf("expected pirate persona reply, got %q", payload.PersonaReply)
	}
	if !strings.Contains(payload.PersonaReply, "Extra Skill") {
		t.Fatalf("expected the news skill line, got %q", payload.PersonaReply)
	}
}

func TestUploadAudioRequiresFile(t *testing.T) {
	server := New(config.NewStore(config.Keys{}))

	req := httptest.NewRequest("POST", "/upload-audio", nil)
	resp, err := server.app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Fatalf("expected status 400, got %d", resp.StatusCode)
	}
}
