package kokoro

import (
	"context"
	"net/http"
)

// VoiceService provides voice listing operations.
type VoiceService struct {
	client *Client
}

// newVoiceService creates a new voice service.
func newVoiceService(client *Client) *VoiceService {
	return &VoiceService{client: client}
}

// List returns the voice ids loaded on the server.
func (s *VoiceService) List(ctx context.Context) ([]string, error) {
	var resp struct {
		Voices []string `json:"voices"`
	}
	err := s.client.http.requestJSON(ctx, http.MethodGet, "/v1/audio/voices", nil, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Voices, nil
}
