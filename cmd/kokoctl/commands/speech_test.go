package commands

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// newSpeechServer stubs the OpenAI-compatible speech API.
func newSpeechServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("/v1/audio/speech", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if body["input"] == "" {
			http.Error(w, "empty input", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3-fake-mp3-bytes"))
	})
	mux.HandleFunc("/v1/audio/voices", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"voices": []string{"af", "af_sky", "bm_lewis"}})
	})
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"id": "tts-1", "object": "model", "created": 1686935002, "owned_by": "kokoro"},
			},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// useSpeechServer wires a context whose kokoro.yaml points at the stub.
func useSpeechServer(t *testing.T, srv *httptest.Server) {
	t.Helper()
	runCmd(t, "config", "add-context", "test")
	runCmd(t, "config", "set", "test", "kokoro", "base_url", srv.URL)
	runCmd(t, "config", "use-context", "test")
}

func TestSpeechSynthesizeFlags(t *testing.T) {
	setupTestEnv(t)
	srv := newSpeechServer(t)
	useSpeechServer(t, srv)

	out := filepath.Join(t.TempDir(), "hello.mp3")
	stdout, stderr, code := runCmd(t, "speech", "synthesize", "--input", "Hello there", "-o", out)
	if code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Audio saved") {
		t.Fatalf("expected save message, got: %s", stdout)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "ID3-fake-mp3-bytes" {
		t.Fatalf("audio bytes altered: %q", data)
	}
}

func TestSpeechSynthesizeRequestFile(t *testing.T) {
	setupTestEnv(t)
	srv := newSpeechServer(t)
	useSpeechServer(t, srv)

	req := writeTestFile(t, "speech.yaml", "model: tts-1\ninput: Hallo\nvoice: af_sky\nspeed: 1.2\n")
	out := filepath.Join(t.TempDir(), "out.mp3")

	_, stderr, code := runCmd(t, "speech", "synthesize", "-f", req, "-o", out)
	if code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatal(err)
	}
}

func TestSpeechSynthesizeNoInput(t *testing.T) {
	setupTestEnv(t)
	srv := newSpeechServer(t)
	useSpeechServer(t, srv)

	_, stderr, code := runCmd(t, "speech", "synthesize", "-o", "out.mp3")
	if code == 0 {
		t.Fatal("expected non-zero exit without input")
	}
	if !strings.Contains(stderr, "no input text") {
		t.Fatalf("expected 'no input text', got: %s", stderr)
	}
}

func TestSpeechSynthesizeNoOutput(t *testing.T) {
	setupTestEnv(t)
	srv := newSpeechServer(t)
	useSpeechServer(t, srv)

	_, stderr, code := runCmd(t, "speech", "synthesize", "--input", "hi")
	if code == 0 {
		t.Fatal("expected non-zero exit without -o")
	}
	if !strings.Contains(stderr, "output file") {
		t.Fatalf("expected output file error, got: %s", stderr)
	}
}

func TestSpeechVoices(t *testing.T) {
	setupTestEnv(t)
	srv := newSpeechServer(t)
	useSpeechServer(t, srv)

	stdout, stderr, code := runCmd(t, "speech", "voices")
	if code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	for _, v := range []string{"af", "af_sky", "bm_lewis"} {
		if !strings.Contains(stdout, v) {
			t.Fatalf("expected %q in output, got: %s", v, stdout)
		}
	}
}

func TestSpeechModels(t *testing.T) {
	setupTestEnv(t)
	srv := newSpeechServer(t)
	useSpeechServer(t, srv)

	stdout, stderr, code := runCmd(t, "speech", "models", "--json")
	if code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "tts-1") {
		t.Fatalf("expected 'tts-1', got: %s", stdout)
	}
}

func TestSpeechPing(t *testing.T) {
	setupTestEnv(t)
	srv := newSpeechServer(t)
	useSpeechServer(t, srv)

	stdout, stderr, code := runCmd(t, "speech", "ping")
	if code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "is up") {
		t.Fatalf("expected 'is up', got: %s", stdout)
	}
}

func TestSpeechWorksWithoutContext(t *testing.T) {
	// No context configured: the client falls back to built-in defaults
	// instead of failing at config time. The request then fails at the
	// transport layer since nothing listens there.
	setupTestEnv(t)

	_, stderr, code := runCmd(t, "-c", "", "speech", "ping")
	if code == 0 {
		t.Skip("a local server is actually running")
	}
	if strings.Contains(stderr, "no current context") {
		t.Fatalf("missing context should not be a config error: %s", stderr)
	}
}
