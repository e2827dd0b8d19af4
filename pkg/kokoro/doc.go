// Package kokoro provides a Go client for an OpenAI-compatible Kokoro TTS
// server (the kokoros `/v1/audio/speech` surface).
//
// # Basic Usage
//
//	client := kokoro.NewClient("any-key", kokoro.WithBaseURL("http://localhost:3000"))
//
//	resp, err := client.Speech.Synthesize(ctx, &kokoro.SpeechRequest{
//	    Model: kokoro.ModelTTS1,
//	    Voice: "af_sky",
//	    Input: "Today is a wonderful day to build something people love!",
//	    ResponseFormat: kokoro.FormatWAV,
//	})
//	if err != nil {
//	    return err
//	}
//	os.WriteFile("speech.wav", resp.Audio, 0644)
//
// The server accepts the model field for OpenAI compatibility but ignores
// it; only one Kokoro model exists. The voice defaults server-side when
// empty.
//
// # Diagnostics
//
// The server also exposes JSON endpoints which the client parses:
//
//	voices, err := client.Voice.List(ctx)   // GET /v1/audio/voices
//	models, err := client.Models.List(ctx)  // GET /v1/models
//	err = client.Health(ctx)                // GET /
//
// # Errors
//
// Transport failures are returned wrapped and stay inspectable with
// errors.As. Non-success HTTP statuses become *Error. Use AsError to
// branch on status:
//
//	if e, ok := kokoro.AsError(err); ok && e.IsNotFound() {
//	    // unknown model/voice
//	}
package kokoro
