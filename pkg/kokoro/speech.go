package kokoro

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

// SpeechService provides speech synthesis operations.
type SpeechService struct {
	client *Client
}

// newSpeechService creates a new speech service.
func newSpeechService(client *Client) *SpeechService {
	return &SpeechService{client: client}
}

// Synthesize converts text to speech and returns the audio verbatim.
//
// The server answers the raw encoded audio stream; a JSON body on this
// endpoint is always an error payload and is surfaced as *Error.
func (s *SpeechService) Synthesize(ctx context.Context, req *SpeechRequest) (*SpeechResponse, error) {
	if req.Input == "" {
		return nil, fmt.Errorf("speech request needs non-empty input text")
	}

	slog.Debug("kokoro synthesize",
		"voice", req.Voice, "format", req.ResponseFormat, "input_len", len(req.Input))

	audio, contentType, err := s.client.http.requestBinary(ctx, http.MethodPost, "/v1/audio/speech", req)
	if err != nil {
		return nil, err
	}

	slog.Debug("kokoro synthesize done", "audio_len", len(audio), "content_type", contentType)

	return &SpeechResponse{
		Audio:       audio,
		ContentType: contentType,
	}, nil
}

// Probe posts the speech request and decodes the response body as JSON.
//
// Useful against stub or diagnostic servers that answer JSON instead of
// an audio stream; the real endpoint only answers JSON on failure.
func (s *SpeechService) Probe(ctx context.Context, req *SpeechRequest) (map[string]any, error) {
	var resp map[string]any
	err := s.client.http.requestJSON(ctx, http.MethodPost, "/v1/audio/speech", req, &resp)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
