package kokoro

// AudioFormat selects the encoding of the synthesized audio.
type AudioFormat string

// Audio formats accepted by the server. Formats without a native encoder
// (opus, aac, flac) currently fall back to MP3 server-side.
const (
	FormatMP3  AudioFormat = "mp3"
	FormatWAV  AudioFormat = "wav"
	FormatPCM  AudioFormat = "pcm"
	FormatOpus AudioFormat = "opus"
	FormatAAC  AudioFormat = "aac"
	FormatFLAC AudioFormat = "flac"
)

// Model ids the server advertises for OpenAI compatibility. All of them
// run the same underlying Kokoro engine.
const (
	ModelTTS1   = "tts-1"
	ModelTTS1HD = "tts-1-hd"
	ModelKokoro = "kokoro"
)

// DefaultVoice is the voice the server falls back to when the request
// leaves the selector empty.
const DefaultVoice = "af_sky"

// SpeechRequest is the body of POST /v1/audio/speech.
type SpeechRequest struct {
	// Model is accepted for OpenAI compatibility and ignored by the
	// server; only one Kokoro model exists.
	Model string `json:"model" yaml:"model"`

	// Input is the text to synthesize.
	Input string `json:"input" yaml:"input"`

	// Voice selects the voice profile. Empty means the server default.
	Voice string `json:"voice,omitempty" yaml:"voice,omitempty"`

	// ResponseFormat selects the audio encoding. Empty means mp3.
	ResponseFormat AudioFormat `json:"response_format,omitempty" yaml:"response_format,omitempty"`

	// Speed scales playback speed. Zero means the server default of 1.0.
	Speed float64 `json:"speed,omitempty" yaml:"speed,omitempty"`

	// InitialSilence prepends silence, in samples.
	InitialSilence *int `json:"initial_silence,omitempty" yaml:"initial_silence,omitempty"`
}

// SpeechResponse is the synthesized audio payload.
type SpeechResponse struct {
	// Audio is the encoded audio, byte for byte as the server sent it.
	Audio []byte

	// ContentType is the response content type, e.g. "audio/wav".
	ContentType string
}

// Model is one entry of the OpenAI-compatible model list.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelList is the response of GET /v1/models.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}
