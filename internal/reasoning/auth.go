package reasoning

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// httpClient returns the transport for model calls.
//
// TWO WAYS TO AUTHENTICATE:
//   - TokenURL set: the OAuth 2.0 client-credentials flow. The returned
//     client fetches an access token with ClientID/ClientSecret, caches it
//     and refreshes it shortly before it expires. No user is involved; the
//     server authenticates as itself.
//   - Otherwise APIKey (if any) is sent as a static bearer token.
//
// Either way the Authorization header is added by the transport, so the
// request code never handles credentials.
func httpClient(ctx context.Context, cfg Config) *http.Client {
	if cfg.TokenURL != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		return cc.Client(ctx)
	}
	if cfg.APIKey != "" {
		return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.APIKey,
			TokenType:   "Bearer",
		}))
	}
	return &http.Client{}
}
