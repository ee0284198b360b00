// Package bridge exposes the command dispatcher to UI surfaces over
// newline-delimited JSON on stdio and over HTTP.
package bridge

import (
	"context"

	"github.com/eliteGoblin/focusd/nagctl/internal/domain"
)

// Handler resolves one command request to its response envelope.
type Handler interface {
	Handle(ctx context.Context, req domain.CommandRequest) domain.CommandResponse
}

// malformedRequest builds the envelope for input that could not be decoded.
func malformedRequest(id string, err error) domain.CommandResponse {
	return domain.CommandResponse{
		ID:      id,
		Success: false,
		Error: &domain.ResponseError{
			Kind:    domain.KindBadPayload,
			Message: "malformed request: " + err.Error(),
		},
	}
}
