package voicebank

const (
	// DefaultMirror is the embedding download base URL. hf-mirror.com
	// stays reachable in regions where huggingface.co is blocked.
	DefaultMirror = "https://hf-mirror.com/hexgrad/Kokoro-82M/resolve/main/voices"

	// HuggingFaceMirror is the upstream host for the same files.
	HuggingFaceMirror = "https://huggingface.co/hexgrad/Kokoro-82M/resolve/main/voices"
)

// DefaultVoices lists the pretrained voices shipped with Kokoro-82M.
// The ids must match the .pt filenames hosted at the mirror.
var DefaultVoices = []string{
	"af",
	"af_bella",
	"af_nicole",
	"af_sarah",
	"af_sky",
	"am_adam",
	"am_michael",
	"bf_emma",
	"bf_isabella",
	"bm_george",
	"bm_lewis",
}

// DefaultShape is the embedding tensor shape every Kokoro voice ships with.
var DefaultShape = []int{511, 1, 256}
