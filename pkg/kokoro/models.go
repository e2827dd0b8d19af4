package kokoro

import (
	"context"
	"net/http"
)

// ModelsService provides model listing operations.
type ModelsService struct {
	client *Client
}

// newModelsService creates a new models service.
func newModelsService(client *Client) *ModelsService {
	return &ModelsService{client: client}
}

// List returns the OpenAI-compatible model list.
func (s *ModelsService) List(ctx context.Context) (*ModelList, error) {
	var resp ModelList
	err := s.client.http.requestJSON(ctx, http.MethodGet, "/v1/models", nil, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Get returns one model by id. Unknown ids yield a 404 *Error.
func (s *ModelsService) Get(ctx context.Context, id string) (*Model, error) {
	var resp Model
	err := s.client.http.requestJSON(ctx, http.MethodGet, "/v1/models/"+id, nil, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
