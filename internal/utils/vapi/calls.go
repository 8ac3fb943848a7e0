package vapi

import (
	"context"
	"fmt"
)

// CreateCall originates an outbound call and returns the provider's call
// resource (at minimum its id).
func (c *Client) CreateCall(ctx context.Context, apiKey string, req CreateCallRequest) (*Call, error) {
	var call Call
	if err := c.doRequest(ctx, apiKey, "POST", "call", req, &call); err != nil {
		return nil, fmt.Errorf("CreateCall error: %w", err)
	}
	return &call, nil
}

// GetCall fetches the current state of a call by id, including the
// transcript artifact once the call has ended.
func (c *Client) GetCall(ctx context.Context, apiKey, callID string) (*Call, error) {
	var call Call
	if err := c.doRequest(ctx, apiKey, "GET", "call/"+callID, nil, &call); err != nil {
		return nil, fmt.Errorf("GetCall error: %w", err)
	}
	return &call, nil
}
