package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maildrift/maildrift/internal/common"
	"github.com/maildrift/maildrift/internal/feed"
	"github.com/maildrift/maildrift/internal/logging"
	"github.com/maildrift/maildrift/internal/server/ratelimit"
	"github.com/maildrift/maildrift/internal/server/services"
)

type fakeUsers struct {
	authErr error
}

func (f *fakeUsers) Register(_ context.Context, email, _, displayName string) (*feed.User, error) {
	u := &feed.User{Email: email, DisplayName: displayName}
	u.ID = "u1"
	return u, nil
}

func (f *fakeUsers) Login(_ context.Context, email, password string) (*services.TokenPair, error) {
	if password != "correct" {
		return nil, common.ErrUnauthorized
	}
	return &services.TokenPair{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (f *fakeUsers) Refresh(_ context.Context, _ string) (*services.TokenPair, error) {
	return &services.TokenPair{AccessToken: "access2", RefreshToken: "refresh2"}, nil
}

func (f *fakeUsers) Logout(_ context.Context, _ string) error { return nil }

func (f *fakeUsers) Authenticate(token string) (string, error) {
	if f.authErr != nil {
		return "", f.authErr
	}
	if token != "valid" {
		return "", common.ErrInvalidToken
	}
	return "u1", nil
}

type fakeFeed struct {
	bundle *feed.Bundle
	err    error
}

func (f *fakeFeed) Compile(_ context.Context, _ string, _ int64) (*feed.Bundle, error) {
	return f.bundle, f.err
}

type fakeMutations struct {
	bundle *feed.Bundle
	err    error
	got    feed.Action
}

func (f *fakeMutations) Apply(_ context.Context, _ string, action feed.Action) (*feed.Bundle, error) {
	f.got = action
	return f.bundle, f.err
}

func newTestServer(t *testing.T, users *fakeUsers, feedAPI *fakeFeed, muts *fakeMutations, limit int) *httptest.Server {
	t.Helper()
	if users == nil {
		users = &fakeUsers{}
	}
	if feedAPI == nil {
		feedAPI = &fakeFeed{bundle: &feed.Bundle{Watermark: 1}}
	}
	if muts == nil {
		muts = &fakeMutations{bundle: &feed.Bundle{}}
	}
	srv := New(":0", logging.NewJSON(), users, feedAPI, muts, ratelimit.New(limit, time.Minute))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url, token, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t, nil, nil, nil, 100)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", "",
		`{"email":"me@example.com","password":"correct"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pair services.TokenPair
	require.NoError(t, json.Unmarshal(body, &pair))
	assert.Equal(t, "access", pair.AccessToken)
	assert.Equal(t, "refresh", pair.RefreshToken)
}

func TestLogin_BadCredentials(t *testing.T) {
	ts := newTestServer(t, nil, nil, nil, 100)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", "",
		`{"email":"me@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestChanges_RequiresToken(t *testing.T) {
	ts := newTestServer(t, nil, nil, nil, 100)

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/changes", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestChanges_ExpiredTokenCarriesCode(t *testing.T) {
	ts := newTestServer(t, &fakeUsers{authErr: common.ErrTokenExpired}, nil, nil, 100)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/changes", "whatever", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var e apiError
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, codeTokenExpired, e.Code)
}

func TestChanges(t *testing.T) {
	ff := &fakeFeed{bundle: &feed.Bundle{Watermark: 42}}
	ts := newTestServer(t, nil, ff, nil, 100)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/changes?since=10", "valid", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var b feed.Bundle
	require.NoError(t, json.Unmarshal(body, &b))
	assert.Equal(t, int64(42), b.Watermark)
}

func TestChanges_BadSince(t *testing.T) {
	ts := newTestServer(t, nil, nil, nil, 100)

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/changes?since=abc", "valid", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMutate(t *testing.T) {
	muts := &fakeMutations{bundle: &feed.Bundle{
		Aliases: []feed.MailboxAlias{{Address: "x@example.com"}},
	}}
	ts := newTestServer(t, nil, nil, muts, 100)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/mutate", "valid",
		`{"actionType":"alias.add","payload":{"id":"a1","mailboxId":"m1","address":"x@example.com"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var mr feed.MutationResponse
	require.NoError(t, json.Unmarshal(body, &mr))
	require.NotNil(t, mr.Success)
	assert.Equal(t, "Alias added", mr.Success.Message)
	require.NotNil(t, mr.Sync)
	assert.Len(t, mr.Sync.Aliases, 1)
	assert.Equal(t, feed.ActionAliasAdd, muts.got.Type)
}

func TestMutate_ValidationError(t *testing.T) {
	muts := &fakeMutations{err: fmt.Errorf("%w: address is required", common.ErrValidation)}
	ts := newTestServer(t, nil, nil, muts, 100)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/mutate", "valid",
		`{"actionType":"alias.add","payload":{}}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var mr feed.MutationResponse
	require.NoError(t, json.Unmarshal(body, &mr))
	assert.Nil(t, mr.Success)
	assert.Contains(t, mr.Error, "address is required")
}

func TestMutate_RateLimited(t *testing.T) {
	ts := newTestServer(t, nil, nil, nil, 1)

	body := `{"actionType":"alias.add","payload":{}}`
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/mutate", "valid", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/mutate", "valid", body)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
