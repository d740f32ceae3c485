package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"voice-relay/constant"
	"voice-relay/entities"
	"voice-relay/pkg/github"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/nacl/box"
)

// fakeGithub is an in-process stand-in for the provider's OAuth and REST
// endpoints.
type fakeGithub struct {
	mux *http.ServeMux
	srv *httptest.Server

	publicKey    *[32]byte
	privateKey   *[32]byte
	secretName   string
	secretSealed string
	secretKeyId  string
	putSecretErr bool

	exchangeErr string

	dispatches []map[string]interface{}
}

func newFakeGithub(t *testing.T) *fakeGithub {
	t.Helper()
	pk, sk, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)

	f := &fakeGithub{
		mux:        http.NewServeMux(),
		publicKey:  pk,
		privateKey: sk,
	}

	f.mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if f.exchangeErr != "" {
			_ = json.NewEncoder(w).Encode(map[string]string{"error": f.exchangeErr})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "gho_test",
			"token_type":   "bearer",
			"scope":        "repo",
		})
	})
	f.mux.HandleFunc("/user/repos", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]interface{}{
			{"full_name": "octo/voice", "private": true},
			{"full_name": "octo/public", "private": false},
		})
	})
	f.mux.HandleFunc("/repos/octo/voice/actions/secrets/public-key", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"key_id": "key-1",
			"key":    base64.StdEncoding.EncodeToString(f.publicKey[:]),
		})
	})
	f.mux.HandleFunc("/repos/octo/voice/actions/secrets/", func(w http.ResponseWriter, r *http.Request) {
		if f.putSecretErr {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var body struct {
			EncryptedValue string `json:"encrypted_value"`
			KeyId          string `json:"key_id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.secretName = r.URL.Path[len("/repos/octo/voice/actions/secrets/"):]
		f.secretSealed = body.EncryptedValue
		f.secretKeyId = body.KeyId
		w.WriteHeader(http.StatusCreated)
	})
	f.mux.HandleFunc("/repos/octo/voice/actions/workflows/on-voice.yaml/dispatches", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.dispatches = append(f.dispatches, body)
		w.WriteHeader(http.StatusNoContent)
	})

	f.srv = httptest.NewServer(f.mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeGithub) client() *github.Client {
	return github.NewClient(github.Config{
		ClientId:     "client-id",
		ClientSecret: "client-secret",
		APIBaseURL:   f.srv.URL,
		OAuthBaseURL: f.srv.URL,
	})
}

// openSecret unseals the captured secret value.
func (f *fakeGithub) openSecret(t *testing.T) string {
	t.Helper()
	sealed, err := base64.StdEncoding.DecodeString(f.secretSealed)
	require.NoError(t, err)
	plain, ok := box.OpenAnonymous(nil, sealed, f.publicKey, f.privateKey)
	require.True(t, ok, "sealed box must open with the repo key pair")
	return string(plain)
}

func TestHandleCallbackUpsertsLink(t *testing.T) {
	fake := newFakeGithub(t)
	repo := newTestRepo(t)
	svc := NewGithubService(repo, fake.client(), &stubPublisher{})
	userId := uuid.New()

	require.NoError(t, svc.HandleCallback(context.Background(), userId, "good-code"))

	link, err := repo.FindGithubLinkByUser(context.Background(), userId)
	require.NoError(t, err)
	assert.Equal(t, "gho_test", link.AccessToken)
	assert.Equal(t, "bearer", link.TokenType)
	assert.Equal(t, "repo", link.Scope)

	// Relinking overwrites in place, at most one row per user.
	require.NoError(t, svc.HandleCallback(context.Background(), userId, "good-code"))
	var count int64
	repo.GetDB().Model(&entities.GithubLink{}).Where("user_id = ?", userId).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestHandleCallbackProviderError(t *testing.T) {
	fake := newFakeGithub(t)
	fake.exchangeErr = "bad_verification_code"
	repo := newTestRepo(t)
	svc := NewGithubService(repo, fake.client(), &stubPublisher{})
	userId := uuid.New()

	err := svc.HandleCallback(context.Background(), userId, "bad-code")
	var oauthErr *github.OAuthError
	require.ErrorAs(t, err, &oauthErr)
	assert.Equal(t, "bad_verification_code", oauthErr.Code)

	_, err = repo.FindGithubLinkByUser(context.Background(), userId)
	assert.Error(t, err, "no link written on a failed exchange")
}

func TestListReposRequiresLink(t *testing.T) {
	fake := newFakeGithub(t)
	repo := newTestRepo(t)
	svc := NewGithubService(repo, fake.client(), &stubPublisher{})

	_, err := svc.ListRepos(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotLinked)

	userId := uuid.New()
	require.NoError(t, svc.HandleCallback(context.Background(), userId, "code"))
	repos, err := svc.ListRepos(context.Background(), userId)
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, "octo/voice", repos[0].FullName)
	assert.True(t, repos[0].Private)
}

func TestSelectRepoProvisionsSecret(t *testing.T) {
	fake := newFakeGithub(t)
	repo := newTestRepo(t)
	svc := NewGithubService(repo, fake.client(), &stubPublisher{})
	userId := uuid.New()
	require.NoError(t, svc.HandleCallback(context.Background(), userId, "code"))

	require.NoError(t, svc.SelectRepo(context.Background(), userId, "octo/voice"))

	assert.Equal(t, constant.WorkflowSecretName, fake.secretName)
	assert.Equal(t, "key-1", fake.secretKeyId)

	tokens, err := repo.ListDeviceTokensByUser(context.Background(), userId)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, tokens[0].Token, fake.openSecret(t), "secret is the freshly minted device token")

	link, err := repo.FindGithubLinkByUser(context.Background(), userId)
	require.NoError(t, err)
	require.NotNil(t, link.GithubRepo)
	assert.Equal(t, "octo/voice", *link.GithubRepo)
}

func TestSelectRepoSecretFailureLeavesRepoUnset(t *testing.T) {
	fake := newFakeGithub(t)
	fake.putSecretErr = true
	repo := newTestRepo(t)
	svc := NewGithubService(repo, fake.client(), &stubPublisher{})
	userId := uuid.New()
	require.NoError(t, svc.HandleCallback(context.Background(), userId, "code"))

	err := svc.SelectRepo(context.Background(), userId, "octo/voice")
	require.Error(t, err)

	link, lookupErr := repo.FindGithubLinkByUser(context.Background(), userId)
	require.NoError(t, lookupErr)
	assert.Nil(t, link.GithubRepo, "repo persisted only after the secret PUT succeeds")

	// The minted token is not rolled back.
	tokens, lookupErr := repo.ListDeviceTokensByUser(context.Background(), userId)
	require.NoError(t, lookupErr)
	assert.Len(t, tokens, 1)
}

func TestSelectRepoNotLinked(t *testing.T) {
	fake := newFakeGithub(t)
	svc := NewGithubService(newTestRepo(t), fake.client(), &stubPublisher{})

	err := svc.SelectRepo(context.Background(), uuid.New(), "octo/voice")
	assert.ErrorIs(t, err, ErrNotLinked)
}

func TestUnlinkIdempotent(t *testing.T) {
	fake := newFakeGithub(t)
	repo := newTestRepo(t)
	svc := NewGithubService(repo, fake.client(), &stubPublisher{})
	userId := uuid.New()

	require.NoError(t, svc.Unlink(context.Background(), userId), "unlinking nothing succeeds")

	require.NoError(t, svc.HandleCallback(context.Background(), userId, "code"))
	require.NoError(t, svc.Unlink(context.Background(), userId))
	require.NoError(t, svc.Unlink(context.Background(), userId))
}

func TestTriggerWorkflow(t *testing.T) {
	fake := newFakeGithub(t)
	repo := newTestRepo(t)
	publisher := &stubPublisher{}
	svc := NewGithubService(repo, fake.client(), publisher)
	owner := uuid.New()

	rec := &entities.Recording{
		ID:       uuid.New(),
		UserId:   owner,
		FilePath: "user/" + owner.String() + "/1_clip.mp3",
		Sender:   constant.SenderUser,
		Status:   constant.RecordingStatusPending,
	}
	require.NoError(t, repo.CreateRecording(context.Background(), rec))

	err := svc.TriggerWorkflow(context.Background(), owner, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	err = svc.TriggerWorkflow(context.Background(), uuid.New(), rec.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Empty(t, publisher.messages)

	require.NoError(t, svc.TriggerWorkflow(context.Background(), owner, rec.ID))
	require.Len(t, publisher.messages, 1)
	assert.Equal(t, rec.ID, publisher.messages[0].RecordingId)
	assert.Equal(t, owner, publisher.messages[0].UserId)
}

func TestAuthorizeURLNotConfigured(t *testing.T) {
	svc := NewGithubService(newTestRepo(t), github.NewClient(github.Config{}), &stubPublisher{})

	_, err := svc.AuthorizeURL(uuid.New(), "https://relay.example")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestAuthorizeURLCarriesState(t *testing.T) {
	fake := newFakeGithub(t)
	svc := NewGithubService(newTestRepo(t), fake.client(), &stubPublisher{})
	userId := uuid.New()

	url, err := svc.AuthorizeURL(userId, "https://relay.example")
	require.NoError(t, err)
	assert.Contains(t, url, "/login/oauth/authorize")
	assert.Contains(t, url, "state="+userId.String())
	assert.Contains(t, url, "scope=repo")
}
