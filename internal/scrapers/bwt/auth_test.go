package bwt

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyLogin(t *testing.T) {
	testCases := []struct {
		name     string
		finalUrl string
		body     string
		expect   loginOutcome
		err      error
	}{
		{
			name:     "dashboard redirect wins over body",
			finalUrl: "https://www.bwt-monservice.com/dashboard",
			body:     `Identifiants invalides <input name="_username">`,
			expect:   loginRedirected,
		},
		{
			name:     "french invalid credentials",
			finalUrl: "https://www.bwt-monservice.com/login",
			body:     "<div>IDENTIFIANTS INVALIDES.</div>",
			err:      ErrAuthentication,
		},
		{
			name:     "english invalid credentials",
			finalUrl: "https://www.bwt-monservice.com/login",
			body:     "<div>Invalid Credentials.</div>",
			err:      ErrAuthentication,
		},
		{
			name:     "login form still present",
			finalUrl: "https://www.bwt-monservice.com/login",
			body:     `<form><input name="_username"><input name="_password"></form>`,
			err:      ErrAuthentication,
		},
		{
			name:     "unrecognized page is assumed to be logged in",
			finalUrl: "https://www.bwt-monservice.com/home",
			body:     "<h1>Bienvenue</h1>",
			expect:   loginAssumed,
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			outcome, err := classifyLogin(test.finalUrl, test.body)
			if test.err != nil {
				require.ErrorIs(t, err, test.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.expect, outcome)
		})
	}
}

func TestAuthenticateRedirectedToDashboard(t *testing.T) {
	portal := newFakePortal()
	// the landing page still mentions the form fields, the redirect alone decides
	portal.landingBody = `<input name="_username"> invalid credentials`
	server := portal.start(t)
	client, _ := newTestClient(t, server, day(2024, 1, 1))

	err := client.Authenticate(context.Background(), testUsername, testPassword)
	require.NoError(t, err)
	require.True(t, client.IsAuthenticated())
	require.Equal(t, 1, portal.loginGets)
	require.Equal(t, 1, portal.loginPosts)
}

func TestAuthenticateInvalidCredentials(t *testing.T) {
	for _, phrase := range []string{"Identifiants invalides", "INVALID CREDENTIALS"} {
		t.Run(phrase, func(t *testing.T) {
			portal := newFakePortal()
			portal.loginHandler = func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprintf(w, "<div class=\"alert\">%s</div>", phrase)
			}
			server := portal.start(t)
			client, tel := newTestClient(t, server, day(2024, 1, 1))

			err := client.Authenticate(context.Background(), testUsername, "wrong")
			require.ErrorIs(t, err, ErrAuthentication)
			require.False(t, client.IsAuthenticated())
			require.NotEmpty(t, tel.Reports("warning"))
		})
	}
}

func TestAuthenticateWrongPasswordAgainstPortal(t *testing.T) {
	portal := newFakePortal()
	server := portal.start(t)
	client, _ := newTestClient(t, server, day(2024, 1, 1))

	err := client.Authenticate(context.Background(), testUsername, "wrong")
	require.ErrorIs(t, err, ErrAuthentication)
}

func TestAuthenticateLoginFormStillPresent(t *testing.T) {
	portal := newFakePortal()
	portal.loginHandler = func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, loginPageHtml)
	}
	server := portal.start(t)
	client, _ := newTestClient(t, server, day(2024, 1, 1))

	err := client.Authenticate(context.Background(), testUsername, testPassword)
	require.ErrorIs(t, err, ErrAuthentication)
	require.ErrorContains(t, err, "login form still present")
}

func TestAuthenticateAssumesSuccess(t *testing.T) {
	portal := newFakePortal()
	portal.loginHandler = func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<h1>Bienvenue</h1>")
	}
	server := portal.start(t)
	client, tel := newTestClient(t, server, day(2024, 1, 1))

	err := client.Authenticate(context.Background(), testUsername, testPassword)
	require.NoError(t, err)
	require.True(t, client.IsAuthenticated())

	warnings := tel.Reports("warning")
	require.Len(t, warnings, 1)
	require.Equal(t, "bwt: "+report_client_authenticate, warnings[0].Id)
}

func TestAuthenticateNon200(t *testing.T) {
	portal := newFakePortal()
	portal.loginHandler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}
	server := portal.start(t)
	client, _ := newTestClient(t, server, day(2024, 1, 1))

	err := client.Authenticate(context.Background(), testUsername, testPassword)
	require.ErrorIs(t, err, ErrAuthentication)
	require.False(t, client.IsAuthenticated())
}

func TestAuthenticateConnectionFailure(t *testing.T) {
	portal := newFakePortal()
	server := portal.start(t)
	client, _ := newTestClient(t, server, day(2024, 1, 1))
	server.Close()

	err := client.Authenticate(context.Background(), testUsername, testPassword)
	require.ErrorIs(t, err, ErrConnection)
	require.NotErrorIs(t, err, ErrAuthentication)
}

func TestEnsureAuthenticatedWithoutCredentials(t *testing.T) {
	portal := newFakePortal()
	server := portal.start(t)
	client, _ := newTestClient(t, server, day(2024, 1, 1))

	_, err := client.GetDeviceData(context.Background())
	require.ErrorIs(t, err, ErrAuthentication)
	require.Equal(t, 0, portal.loginPosts)
}
