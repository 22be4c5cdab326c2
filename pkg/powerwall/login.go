package powerwall

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type loginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	ForceSmOff bool   `json:"force_sm_off"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Authenticate exchanges the installer password for a session token.
// The gateway accepts an empty username for customer logins.
func (c *Client) Authenticate(ctx context.Context, host, password string) (string, error) {
	data, err := c.do(ctx, http.MethodPost, host, loginPath, "", loginRequest{
		Password:   password,
		ForceSmOff: c.forceSmOff,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuth, err)
	}

	var resp loginResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("%w: %w: %w", ErrAuth, ErrMalformedResponse, err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("%w: response carries no token", ErrAuth)
	}
	return resp.Token, nil
}
