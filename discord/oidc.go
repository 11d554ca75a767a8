package discord

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
)

// IDTokenVerifier verifies a raw ID token. *oidc.IDTokenVerifier satisfies it.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// discoveryVerifier resolves the issuer's discovery document on first use and caches the
// resulting verifier.
type discoveryVerifier struct {
	issuer     string
	clientID   string
	httpClient *http.Client

	mu       sync.Mutex
	verifier *oidc.IDTokenVerifier
}

var _ IDTokenVerifier = (*discoveryVerifier)(nil)

func newDiscoveryVerifier(issuer, clientID string, httpClient *http.Client) *discoveryVerifier {
	return &discoveryVerifier{
		issuer:     issuer,
		clientID:   clientID,
		httpClient: httpClient,
	}
}

func (d *discoveryVerifier) Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error) {
	verifier, err := d.get(ctx)
	if err != nil {
		return nil, err
	}
	return verifier.Verify(ctx, rawIDToken)
}

func (d *discoveryVerifier) get(ctx context.Context) (*oidc.IDTokenVerifier, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.verifier != nil {
		return d.verifier, nil
	}

	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, d.httpClient), d.issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	d.verifier = provider.Verifier(&oidc.Config{ClientID: d.clientID})
	return d.verifier, nil
}
