package auth

import "errors"

// Sentinel errors for the credential lifecycle. Callers classify them
// with errors.Is to decide whether the interactive flow must be run
// again or the environment needs fixing.
var (
	// ErrKeyFileMissing indicates the OAuth client key file does not exist.
	ErrKeyFileMissing = errors.New("oauth key file not found")

	// ErrKeyFileMalformed indicates the key file exists but could not be
	// parsed, or carries neither an "installed" nor a "web" client object.
	ErrKeyFileMalformed = errors.New("oauth key file malformed")

	// ErrNoPortAvailable indicates every candidate callback port is bound.
	ErrNoPortAvailable = errors.New("no callback port available")

	// ErrPortInUse indicates the selected callback port was taken between
	// selection and bind.
	ErrPortInUse = errors.New("callback port already in use")

	// ErrNoCredentials indicates no usable credential record is stored.
	// A credential file that exists but does not parse maps here too: a
	// corrupt file is an empty session, not a fatal condition.
	ErrNoCredentials = errors.New("no stored credentials")

	// ErrCorruptCredentials indicates the credential file exists but is
	// not valid JSON.
	ErrCorruptCredentials = errors.New("credential file corrupt")

	// ErrRefreshTokenMissing indicates the stored record is expired and
	// carries no refresh token, so only the interactive flow can help.
	ErrRefreshTokenMissing = errors.New("credentials expired and no refresh token stored")

	// ErrRefreshFailed indicates the provider rejected the refresh
	// request (revoked or invalid refresh token).
	ErrRefreshFailed = errors.New("token refresh rejected")

	// ErrAuthDenied indicates the user declined the consent screen.
	ErrAuthDenied = errors.New("authorization denied")

	// ErrMalformedCallback indicates the provider redirect carried
	// neither an authorization code nor an error.
	ErrMalformedCallback = errors.New("callback carried neither code nor error")

	// ErrAuthTimeout indicates no callback arrived before the flow
	// deadline.
	ErrAuthTimeout = errors.New("timed out waiting for authorization callback")

	// ErrExchangeFailed indicates the authorization code could not be
	// exchanged for tokens.
	ErrExchangeFailed = errors.New("authorization code exchange failed")

	// ErrListenerFailed indicates the callback listener died before a
	// callback arrived.
	ErrListenerFailed = errors.New("callback listener failed")
)
