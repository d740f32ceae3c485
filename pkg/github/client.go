package github

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/crypto/nacl/box"
)

const userAgent = "voice-relay"

type Config struct {
	ClientId     string
	ClientSecret string
	// APIBaseURL and OAuthBaseURL default to the public GitHub endpoints.
	// Tests point them at a local fake.
	APIBaseURL   string
	OAuthBaseURL string
	WorkflowFile string
	WorkflowRef  string
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.github.com"
	}
	if cfg.OAuthBaseURL == "" {
		cfg.OAuthBaseURL = "https://github.com"
	}
	if cfg.WorkflowFile == "" {
		cfg.WorkflowFile = "on-voice.yaml"
	}
	if cfg.WorkflowRef == "" {
		cfg.WorkflowRef = "main"
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *Client) Configured() bool {
	return c.cfg.ClientId != "" && c.cfg.ClientSecret != ""
}

// OAuthError carries the provider's error code so callers can surface it in
// a redirect query parameter.
type OAuthError struct {
	Code string
}

func (e *OAuthError) Error() string {
	return fmt.Sprintf("oauth error: %s", e.Code)
}

// AuthorizeURL builds the provider authorize redirect for the given
// anti-forgery state.
func (c *Client) AuthorizeURL(redirectURI, scope, state string) string {
	q := url.Values{}
	q.Set("client_id", c.cfg.ClientId)
	q.Set("redirect_uri", redirectURI)
	q.Set("scope", scope)
	q.Set("state", state)
	return c.cfg.OAuthBaseURL + "/login/oauth/authorize?" + q.Encode()
}

type AccessToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
	Error       string `json:"error"`
}

// ExchangeCode performs the server-to-server authorization-code exchange.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*AccessToken, error) {
	body, err := json.Marshal(map[string]string{
		"client_id":     c.cfg.ClientId,
		"client_secret": c.cfg.ClientSecret,
		"code":          code,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OAuthBaseURL+"/login/oauth/access_token", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var token AccessToken
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, err
	}
	if token.Error != "" {
		return nil, &OAuthError{Code: token.Error}
	}
	if token.AccessToken == "" {
		return nil, &OAuthError{Code: "empty_token"}
	}
	if token.TokenType == "" {
		token.TokenType = "bearer"
	}
	return &token, nil
}

type Repo struct {
	FullName string `json:"full_name"`
	Private  bool   `json:"private"`
}

func (c *Client) ListRepos(ctx context.Context, token string) ([]Repo, error) {
	var repos []Repo
	err := c.doJSON(ctx, http.MethodGet, "/user/repos?per_page=100&sort=updated", token, nil, &repos)
	if err != nil {
		return nil, err
	}
	return repos, nil
}

type PublicKey struct {
	KeyId string `json:"key_id"`
	Key   string `json:"key"`
}

func (c *Client) RepoPublicKey(ctx context.Context, token, repo string) (*PublicKey, error) {
	key := &PublicKey{}
	path := fmt.Sprintf("/repos/%s/actions/secrets/public-key", repo)
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, key); err != nil {
		return nil, err
	}
	return key, nil
}

// PutRepoSecret seals value with the repository's public key and uploads it
// as a named actions secret.
func (c *Client) PutRepoSecret(ctx context.Context, token, repo, name, value string, key *PublicKey) error {
	sealed, err := SealSecret(value, key.Key)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/repos/%s/actions/secrets/%s", repo, name)
	payload := map[string]string{
		"encrypted_value": sealed,
		"key_id":          key.KeyId,
	}
	return c.doJSON(ctx, http.MethodPut, path, token, payload, nil)
}

// DispatchWorkflow fires a workflow_dispatch event for the configured
// workflow file on the configured ref.
func (c *Client) DispatchWorkflow(ctx context.Context, token, repo string, inputs map[string]string) error {
	path := fmt.Sprintf("/repos/%s/actions/workflows/%s/dispatches", repo, c.cfg.WorkflowFile)
	payload := map[string]interface{}{
		"ref":    c.cfg.WorkflowRef,
		"inputs": inputs,
	}
	return c.doJSON(ctx, http.MethodPost, path, token, payload, nil)
}

// SealSecret encrypts secret for a base64-encoded 32-byte curve25519 public
// key using an anonymous sealed box, the scheme required by the actions
// secret-storage API. Returns base64 ciphertext.
func SealSecret(secret, publicKeyB64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil {
		return "", fmt.Errorf("decode public key: %w", err)
	}
	if len(raw) != 32 {
		return "", fmt.Errorf("public key must be 32 bytes, got %d", len(raw))
	}
	var pk [32]byte
	copy(pk[:], raw)

	sealed, err := box.SealAnonymous(nil, []byte(secret), &pk, rand.Reader)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIBaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("github api %s %s: status %d: %s", method, path, resp.StatusCode, string(detail))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
