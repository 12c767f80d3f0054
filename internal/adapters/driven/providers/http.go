package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/aide-core/internal/core/domain"
	"github.com/custodia-labs/aide-core/internal/core/ports/driven"
)

const (
	// requestTimeout bounds every provider call.
	requestTimeout = 10 * time.Second

	// maxRetries is the number of retries for clearly transient failures.
	// 4xx responses are never retried.
	maxRetries = 2

	retryBaseDelay = 500 * time.Millisecond
)

// NewHTTPClient returns the http.Client adapters use for provider calls.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

// tokenResponse is the common shape of OAuth token endpoint responses.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Error        string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}

// terminalOAuthErrors are provider error codes that must never be retried.
var terminalOAuthErrors = map[string]bool{
	"invalid_grant":          true,
	"invalid_client":         true,
	"unauthorized_client":    true,
	"unsupported_grant_type": true,
	"invalid_request":        true,
	"invalid_scope":          true,
	"access_denied":          true,
	"interaction_required":   true,
	"consent_required":       true,
	"restricted_token":       true,
	"unauthorized_user":      true,
	"invalid_redirect_uri":   true,
}

// PostTokenForm POSTs a form to a token endpoint and normalizes the result.
// basicAuth switches the client credentials from body parameters to HTTP
// basic auth (Notion's style). Transient failures (timeouts, 5xx) are retried
// with backoff up to maxRetries and surface as domain.ErrProviderUnavailable;
// provider-reported grant failures surface as domain.ErrInvalidGrant.
func PostTokenForm(ctx context.Context, client *http.Client, endpoint string, form url.Values, basicAuth *Credentials) (*driven.ProviderToken, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, ctx.Err())
			case <-time.After(time.Duration(attempt) * retryBaseDelay):
			}
		}

		token, retryable, err := postTokenFormOnce(ctx, client, endpoint, form, basicAuth)
		if err == nil {
			return token, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func postTokenFormOnce(ctx context.Context, client *http.Client, endpoint string, form url.Values, basicAuth *Credentials) (token *driven.ProviderToken, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if basicAuth != nil {
		req.SetBasicAuth(basicAuth.ClientID, basicAuth.ClientSecret)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, isTransient(err), fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, true, fmt.Errorf("%w: read response: %v", domain.ErrProviderUnavailable, err)
	}

	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("%w: token endpoint returned %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, false, fmt.Errorf("%w: token endpoint returned %d", domain.ErrInvalidGrant, resp.StatusCode)
		}
		return nil, false, fmt.Errorf("decode token response: %w", err)
	}

	if tr.Error != "" {
		if terminalOAuthErrors[tr.Error] || resp.StatusCode >= 400 {
			return nil, false, fmt.Errorf("%w: %s - %s", domain.ErrInvalidGrant, tr.Error, tr.ErrorDesc)
		}
		return nil, false, fmt.Errorf("oauth error: %s - %s", tr.Error, tr.ErrorDesc)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("%w: token endpoint returned %d", domain.ErrInvalidGrant, resp.StatusCode)
	}
	if tr.AccessToken == "" {
		return nil, false, fmt.Errorf("token endpoint returned no access token")
	}

	return &driven.ProviderToken{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		Scope:        tr.Scope,
		ExpiresIn:    tr.ExpiresIn,
	}, false, nil
}

// GetJSON fetches an authenticated endpoint and decodes the JSON body into out.
func GetJSON(ctx context.Context, client *http.Client, endpoint, accessToken string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: identity endpoint returned %d", domain.ErrInvalidGrant, resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: identity endpoint returned %d", domain.ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("identity request failed: %d %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode identity response: %w", err)
	}
	return nil
}

// PostRevoke sends a best-effort token revocation. A 200 or 400 from the
// revoke endpoint both count as success: a 400 typically means the token was
// already invalid, which is the state we want.
func PostRevoke(ctx context.Context, client *http.Client, endpoint string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusBadRequest {
		return nil
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: revoke endpoint returned %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}
	return fmt.Errorf("revoke failed: %d", resp.StatusCode)
}

// isTransient reports whether a transport error is worth retrying.
func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// Connection resets and refusals come through as OpErrors.
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
