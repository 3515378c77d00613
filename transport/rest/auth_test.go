package rest

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/junpoanalyze/chips"
	"github.com/junpoanalyze/chips/mock"
	"github.com/stretchr/testify/assert"
)

func TestLogin(t *testing.T) {
	assert := assert.New(t)

	var gotEmail, gotPassword string
	auth := mock.Authenticator{
		LoginFn: func(ctx context.Context, email string, password string) (chips.Session, error) {
			gotEmail, gotPassword = email, password
			return chips.NewSession("new-session-id", chips.HashEmail(email), &mock.Upstream{}, time.Now()), nil
		},
	}
	api := newTestApi(auth, mock.HistoryService{})

	status, body := api.do(t, call{method: http.MethodPost, path: "/proxy/api/login",
		body: `{"email":"  player@example.com ","password":"hunter22"}`})
	assert.Equal(fiber.StatusOK, status)
	assert.JSONEq(`{"success":true,"session_id":"new-session-id","message":"Login successful"}`, body)
	assert.Equal("player@example.com", gotEmail)
	assert.Equal("hunter22", gotPassword)
}

func TestLoginValidation(t *testing.T) {
	auth := mock.Authenticator{
		LoginFn: func(ctx context.Context, email string, password string) (chips.Session, error) {
			t.Error("login must not be attempted")
			return chips.Session{}, nil
		},
	}
	api := newTestApi(auth, mock.HistoryService{})

	cases := []struct {
		body    string
		message string
	}{
		{`{"email":"","password":"hunter22"}`, "Email and password required"},
		{`{"email":"player@example.com"}`, "Email and password required"},
		{`{"email":"player","password":"hunter22"}`, "Invalid email format"},
		{`{"email":"player@example.com","password":"12345"}`, "Invalid password length"},
		{`{"email":`, "Invalid request body"},
	}
	for _, useCase := range cases {
		status, body := api.do(t, call{method: http.MethodPost, path: "/proxy/api/login", body: useCase.body})
		assert.Equal(t, fiber.StatusBadRequest, status, useCase.body)
		assert.Equal(t, jsonErrorResponse(useCase.message), body, useCase.body)
	}
}

func TestLoginErrors(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{&chips.AuthError{Kind: chips.ErrAuthTimeout, Err: context.DeadlineExceeded},
			fiber.StatusGatewayTimeout, "Request timeout"},
		{&chips.AuthError{Kind: chips.ErrInvalidCredentials},
			fiber.StatusUnauthorized, "Invalid credentials"},
		{&chips.AuthError{Kind: chips.ErrProtocolChanged, Err: errors.New("authenticity_token field missing")},
			fiber.StatusInternalServerError, "Authentication failed"},
		{&chips.AuthError{Kind: chips.ErrAuthUnknown, Err: errors.New("sign in landed on HTTP 502")},
			fiber.StatusInternalServerError, "Authentication failed"},
	}
	for _, useCase := range cases {
		loginErr := useCase.err
		auth := mock.Authenticator{
			LoginFn: func(ctx context.Context, email string, password string) (chips.Session, error) {
				return chips.Session{}, loginErr
			},
		}
		api := newTestApi(auth, mock.HistoryService{})

		status, body := api.do(t, call{method: http.MethodPost, path: "/proxy/api/login",
			body: `{"email":"player@example.com","password":"hunter22"}`})
		assert.Equal(t, useCase.status, status, loginErr.Error())
		assert.Equal(t, jsonErrorResponse(useCase.message), body, loginErr.Error())
	}
}

func TestLogout(t *testing.T) {
	assert := assert.New(t)
	api := newTestApi(mock.Authenticator{}, mock.HistoryService{})
	session := api.newSession(t)

	for i := 0; i < 2; i++ {
		status, body := api.do(t, call{method: http.MethodPost, path: "/proxy/api/logout", sessionId: session.Id})
		assert.Equal(fiber.StatusOK, status)
		assert.JSONEq(`{"success":true,"message":"Logged out"}`, body)
	}
	_, err := api.sessions.Get(session.Id)
	assert.ErrorIs(err, chips.ErrSessionNotFound)

	status, _ := api.do(t, call{method: http.MethodPost, path: "/proxy/api/logout"})
	assert.Equal(fiber.StatusOK, status)

	entries, err := api.audit.ByEmailHash(context.Background(), "email-hash", -1, 10)
	if assert.NoError(err) && assert.Len(entries, 1) {
		assert.Equal(chips.AuditSessionEnded, entries[0].Name)
	}
}
