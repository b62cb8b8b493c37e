package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recycle-ai/recycle/internal/backend"
	"github.com/recycle-ai/recycle/internal/session"
)

func newTestBackend(t *testing.T, h http.Handler) *backend.Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	c, err := backend.New(ts.URL, 5*time.Second, 1<<20, nil)
	require.NoError(t, err)
	return c
}

func kindOf(t *testing.T, err error) Kind {
	t.Helper()
	var ae *Error
	require.True(t, errors.As(err, &ae), "expected *auth.Error, got %v", err)
	return ae.Kind
}

func TestLoginSuccessAndCookieOnLogout(t *testing.T) {
	var gotCred Credentials
	var logoutCookie string
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotCred)
		http.SetCookie(w, &http.Cookie{Name: "token", Value: "abc", Path: "/"})
		w.Write([]byte(`{"message":"Login successful","user":{"id":1,"name":"A"}}`))
	})
	mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("token"); err == nil {
			logoutCookie = c.Value
		}
		w.Write([]byte(`{"message":"bye"}`))
	})
	c := NewClient(newTestBackend(t, mux))

	res, err := c.Login(context.Background(), Credentials{Email: "a@x.io", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "a@x.io", gotCred.Email)
	assert.Equal(t, &session.User{ID: "1", Name: "A"}, res.User)

	require.NoError(t, c.Logout(context.Background()))
	assert.Equal(t, "abc", logoutCookie)
}

func TestLoginErrorKinds(t *testing.T) {
	status := http.StatusUnauthorized
	c := NewClient(newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(`{"message":"nope"}`))
	})))
	ctx := context.Background()
	cred := Credentials{Email: "a@x.io", Password: "pw"}

	_, err := c.Login(ctx, cred)
	assert.Equal(t, KindInvalidCredentials, kindOf(t, err))

	status = http.StatusInternalServerError
	_, err = c.Login(ctx, cred)
	assert.Equal(t, KindServer, kindOf(t, err))

	_, err = c.Login(ctx, Credentials{Email: "a@x.io"})
	assert.Equal(t, KindInvalidCredentials, kindOf(t, err))
}

func TestLoginWithoutUserIsServerError(t *testing.T) {
	c := NewClient(newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"ok"}`))
	})))
	_, err := c.Login(context.Background(), Credentials{Email: "a@x.io", Password: "pw"})
	assert.Equal(t, KindServer, kindOf(t, err))
}

func TestNetworkErrorIsDistinct(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	b, err := backend.New("http://"+addr, time.Second, 1<<20, nil)
	require.NoError(t, err)
	c := NewClient(b)

	_, err = c.Login(context.Background(), Credentials{Email: "a@x.io", Password: "pw"})
	require.Equal(t, KindNetwork, kindOf(t, err))
	var ae *Error
	require.ErrorAs(t, err, &ae)
	assert.NotEqual(t, (&Error{Kind: KindInvalidCredentials}).UserMessage(), ae.UserMessage())
}

func TestSignup(t *testing.T) {
	var got Registration
	ok := true
	c := NewClient(newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		if !ok {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"message":"User already exists"}`))
			return
		}
		w.Write([]byte(`{"message":"created"}`))
	})))
	ctx := context.Background()
	reg := Registration{Name: "A", Email: "a@x.io", Password: "pw"}

	require.NoError(t, c.Signup(ctx, reg))
	assert.Equal(t, reg, got)

	ok = false
	err := c.Signup(ctx, reg)
	assert.Equal(t, KindRejected, kindOf(t, err))
	var ae *Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "Could not register: User already exists", ae.UserMessage())
}
