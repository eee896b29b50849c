package pesapal

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
)

// tokenSource adapts Authenticate to oauth2 so the bearer header is attached
// by the transport rather than by every call site.
type tokenSource struct {
	ctx    context.Context
	client *Client
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.client.Authenticate(s.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: tok.Token,
		TokenType:   "Bearer",
		Expiry:      tok.ExpiresAt,
	}, nil
}

// authorizedClient returns an http.Client scoped to one call sequence.
func (c *Client) authorizedClient(ctx context.Context) *http.Client {
	base := context.WithValue(ctx, oauth2.HTTPClient, c.http)
	hc := oauth2.NewClient(base, &tokenSource{ctx: ctx, client: c})
	hc.Timeout = c.timeout
	return hc
}
