package commands

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kokotools/kokoctl/pkg/torchpt/pttest"
)

// newHubServer serves synthetic .pt archives for the given voices.
func newHubServer(t *testing.T, voices ...string) *httptest.Server {
	t.Helper()
	blobs := make(map[string][]byte, len(voices))
	for _, v := range voices {
		blobs["/"+v+".pt"] = pttest.Archive{
			Shape: []int{2, 1, 2},
			Data:  []float32{0.25, 0.5, 0.75, 1.0},
		}.Bytes()
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		blob, ok := blobs[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(blob)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVoicesFetch(t *testing.T) {
	setupTestEnv(t)
	srv := newHubServer(t, "af", "am_adam")

	out := filepath.Join(t.TempDir(), "data", "voices.json")
	stdout, stderr, code := runCmd(t, "voices", "fetch",
		"--mirror", srv.URL, "--voice", "af", "--voice", "am_adam",
		"--no-shape-check", "-o", out)
	if code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Wrote 2 voices") {
		t.Fatalf("expected summary, got: %s", stdout)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"af":[[[0.25,0.5]],[[0.75,1]]],"am_adam":[[[0.25,0.5]],[[0.75,1]]]}`
	if string(data) != want {
		t.Fatalf("registry = %s, want %s", data, want)
	}
}

func TestVoicesFetchMissingVoiceAborts(t *testing.T) {
	setupTestEnv(t)
	srv := newHubServer(t, "af")

	out := filepath.Join(t.TempDir(), "voices.json")
	_, stderr, code := runCmd(t, "voices", "fetch",
		"--mirror", srv.URL, "--voice", "af", "--voice", "missing",
		"--no-shape-check", "-o", out)
	if code == 0 {
		t.Fatal("expected non-zero exit")
	}
	if !strings.Contains(stderr, "missing") {
		t.Fatalf("expected failing voice in error, got: %s", stderr)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatal("partial registry written despite abort")
	}
}

func TestVoicesFetchKeepGoing(t *testing.T) {
	setupTestEnv(t)
	srv := newHubServer(t, "af")

	out := filepath.Join(t.TempDir(), "voices.json")
	stdout, stderr, code := runCmd(t, "voices", "fetch",
		"--mirror", srv.URL, "--voice", "missing", "--voice", "af",
		"--no-shape-check", "--keep-going", "-o", out)
	if code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Wrote 1 voices") {
		t.Fatalf("expected 1 voice, got: %s", stdout)
	}
}

func TestVoicesFetchMirrorFromHubConfig(t *testing.T) {
	setupTestEnv(t)
	srv := newHubServer(t, "af")

	runCmd(t, "config", "add-context", "dev")
	runCmd(t, "config", "set", "dev", "hub", "mirror", srv.URL)
	runCmd(t, "config", "use-context", "dev")

	out := filepath.Join(t.TempDir(), "voices.json")
	_, stderr, code := runCmd(t, "voices", "fetch",
		"--voice", "af", "--no-shape-check", "-o", out)
	if code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatal(err)
	}
}

func TestVoicesList(t *testing.T) {
	setupTestEnv(t)
	srv := newHubServer(t, "af")

	out := filepath.Join(t.TempDir(), "voices.json")
	if _, stderr, code := runCmd(t, "voices", "fetch",
		"--mirror", srv.URL, "--voice", "af", "--no-shape-check", "-o", out); code != 0 {
		t.Fatalf("fetch failed: %s", stderr)
	}

	stdout, stderr, code := runCmd(t, "voices", "list", "-f", out)
	if code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "af") || !strings.Contains(stdout, "2x1x2") {
		t.Fatalf("expected voice and shape, got: %s", stdout)
	}
}

func TestVoicesListMissingFile(t *testing.T) {
	setupTestEnv(t)

	_, _, code := runCmd(t, "voices", "list", "-f", filepath.Join(t.TempDir(), "nope.json"))
	if code == 0 {
		t.Fatal("expected non-zero exit")
	}
}
