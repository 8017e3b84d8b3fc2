package cardlink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// tokenSource caches OAuth client-credentials tokens per client ID. Tokens
// are refreshed 60 seconds before expiry so in-flight requests never carry a
// token that expires mid-call.
type tokenSource struct {
	client *http.Client

	mu      sync.Mutex // guards the entries map only, never held across I/O
	entries map[string]*tokenEntry
}

// tokenEntry holds one client's token under its own lock. The fetch runs
// under the entry lock: concurrent callers for the same client share a single
// fetch, while a slow token endpoint cannot stall callers for other clients.
type tokenEntry struct {
	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

const tokenRefreshMargin = 60 * time.Second

func newTokenSource(client *http.Client) *tokenSource {
	return &tokenSource{
		client:  client,
		entries: make(map[string]*tokenEntry),
	}
}

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Token returns a valid bearer token for the given credentials, fetching a
// new one only when the cached token is missing or close to expiry.
func (ts *tokenSource) Token(ctx context.Context, baseURL, clientID, clientSecret string) (string, error) {
	e := ts.entry(clientID)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.accessToken != "" && time.Now().Before(e.expiresAt.Add(-tokenRefreshMargin)) {
		return e.accessToken, nil
	}

	body, err := json.Marshal(tokenRequest{
		GrantType:    "client_credentials",
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})
	if err != nil {
		return "", fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/oauth/token", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request returned status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token response contained no access token")
	}

	e.accessToken = tr.AccessToken
	e.expiresAt = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	return e.accessToken, nil
}

func (ts *tokenSource) entry(clientID string) *tokenEntry {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	e, ok := ts.entries[clientID]
	if !ok {
		e = &tokenEntry{}
		ts.entries[clientID] = e
	}
	return e
}

// invalidate drops the cached token for a client, forcing a refresh on the
// next call. Used after a 401 from the API.
func (ts *tokenSource) invalidate(clientID string) {
	e := ts.entry(clientID)
	e.mu.Lock()
	e.accessToken = ""
	e.mu.Unlock()
}
