package kokoro_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kokotools/kokoctl/pkg/kokoro"
)

func newTestClient(srv *httptest.Server, opts ...kokoro.Option) *kokoro.Client {
	opts = append([]kokoro.Option{kokoro.WithBaseURL(srv.URL), kokoro.WithRetry(0)}, opts...)
	return kokoro.NewClient("test-key", opts...)
}

func TestSynthesize_Audio(t *testing.T) {
	audio := []byte("RIFF....WAVEfmt fake-audio-payload")

	var gotBody map[string]any
	var gotAuth, gotReqID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-ID")
		json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "audio/wav")
		w.Write(audio)
	}))
	defer srv.Close()

	client := newTestClient(srv)
	resp, err := client.Speech.Synthesize(context.Background(), &kokoro.SpeechRequest{
		Model:          kokoro.ModelTTS1,
		Voice:          "am_michael",
		Input:          "Today is a wonderful day to build something people love!",
		ResponseFormat: kokoro.FormatWAV,
	})
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}

	// The payload must arrive byte for byte, no truncation.
	if !bytes.Equal(resp.Audio, audio) {
		t.Fatalf("audio differs: got %d bytes, want %d", len(resp.Audio), len(audio))
	}
	if resp.ContentType != "audio/wav" {
		t.Fatalf("ContentType = %q, want audio/wav", resp.ContentType)
	}

	if gotAuth != "Bearer test-key" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotReqID == "" {
		t.Fatal("missing X-Request-ID header")
	}
	if gotBody["model"] != "tts-1" || gotBody["voice"] != "am_michael" {
		t.Fatalf("request body = %v", gotBody)
	}
	if gotBody["input"] == "" {
		t.Fatalf("request body missing input: %v", gotBody)
	}
}

func TestSynthesize_EmptyInput(t *testing.T) {
	client := kokoro.NewClient("k")
	_, err := client.Speech.Synthesize(context.Background(), &kokoro.SpeechRequest{Voice: "af"})
	if err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestSynthesize_JSONBodyIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error":{"message":"voice not loaded","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv)
	_, err := client.Speech.Synthesize(context.Background(), &kokoro.SpeechRequest{Input: "hi"})

	e, ok := kokoro.AsError(err)
	if !ok {
		t.Fatalf("error %v is %T, want *kokoro.Error", err, err)
	}
	if e.Message != "voice not loaded" {
		t.Fatalf("Message = %q", e.Message)
	}
}

func TestSynthesize_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "synthesis failed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv)
	_, err := client.Speech.Synthesize(context.Background(), &kokoro.SpeechRequest{Input: "hi"})

	e, ok := kokoro.AsError(err)
	if !ok {
		t.Fatalf("error %v is %T, want *kokoro.Error", err, err)
	}
	if !e.IsServerError() || !e.Retryable() {
		t.Fatalf("500 should be a retryable server error, got %+v", e)
	}
}

func TestSynthesize_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	audio := []byte("audio")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(audio)
	}))
	defer srv.Close()

	client := kokoro.NewClient("k", kokoro.WithBaseURL(srv.URL), kokoro.WithRetry(1))
	resp, err := client.Speech.Synthesize(context.Background(), &kokoro.SpeechRequest{Input: "hi"})
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
	if !bytes.Equal(resp.Audio, audio) {
		t.Fatal("audio differs after retry")
	}
}

func TestSynthesize_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NewServeMux())
	url := srv.URL
	srv.Close()

	client := kokoro.NewClient("k", kokoro.WithBaseURL(url), kokoro.WithRetry(0))
	_, err := client.Speech.Synthesize(context.Background(), &kokoro.SpeechRequest{Input: "hi"})
	if err == nil {
		t.Fatal("expected transport error")
	}
	if _, ok := kokoro.AsError(err); ok {
		t.Fatalf("transport error %v misclassified as API error", err)
	}
}

func TestProbe_EchoesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := newTestClient(srv)
	got, err := client.Speech.Probe(context.Background(), &kokoro.SpeechRequest{
		Model: "tts-1",
		Voice: "af_sky",
		Input: "Hello, this is a test of the Kokoro TTS system!",
	})
	if err != nil {
		t.Fatalf("Probe error: %v", err)
	}
	if len(got) != 1 || got["ok"] != true {
		t.Fatalf("Probe = %v, want {\"ok\": true}", got)
	}
}

func TestVoiceList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/voices" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"voices":["af","af_sky","am_michael"]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv)
	voices, err := client.Voice.List(context.Background())
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(voices) != 3 || voices[1] != "af_sky" {
		t.Fatalf("voices = %v", voices)
	}
}

func TestModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/models":
			w.Write([]byte(`{"object":"list","data":[{"id":"tts-1","object":"model","created":1686935002,"owned_by":"kokoro"}]}`))
		case "/v1/models/tts-1":
			w.Write([]byte(`{"id":"tts-1","object":"model","created":1686935002,"owned_by":"kokoro"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"message":"model not found","type":"invalid_request_error"}}`))
		}
	}))
	defer srv.Close()

	client := newTestClient(srv)

	list, err := client.Models.List(context.Background())
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(list.Data) != 1 || list.Data[0].ID != "tts-1" {
		t.Fatalf("models = %+v", list)
	}

	model, err := client.Models.Get(context.Background(), "tts-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if model.OwnedBy != "kokoro" {
		t.Fatalf("model = %+v", model)
	}

	_, err = client.Models.Get(context.Background(), "gpt-4")
	if e, ok := kokoro.AsError(err); !ok || !e.IsNotFound() {
		t.Fatalf("error %v should be a 404 API error", err)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("OK"))
	}))
	defer srv.Close()

	client := newTestClient(srv)
	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("Health error: %v", err)
	}
}

func TestError_Strings(t *testing.T) {
	e := &kokoro.Error{HTTPStatus: 404, Message: "model not found", RequestID: "r-1"}
	if !strings.Contains(e.Error(), "model not found") {
		t.Fatalf("Error() = %q", e.Error())
	}
	if !e.IsNotFound() {
		t.Fatal("expected IsNotFound")
	}

	var err error = e
	var target *kokoro.Error
	if !errors.As(err, &target) {
		t.Fatal("errors.As failed")
	}
}
