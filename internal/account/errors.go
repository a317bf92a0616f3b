package account

import (
	goerrors "github.com/goliatone/go-errors"
)

// The externally visible error surface is deliberately flat: within
// one operation every lookup failure and credential mismatch collapses
// to a single generic message. This anti-enumeration property is part
// of the contract; do not make these errors more specific.
var (
	// ErrCannotRegister covers every signup collision (email, phone,
	// uid or provider id) without revealing which field collided.
	ErrCannotRegister = goerrors.New("cannot register with provided information", goerrors.CategoryConflict).
		WithTextCode("CANNOT_REGISTER").
		WithCode(goerrors.CodeConflict)

	// ErrInvalidCredentials covers account-not-found and password
	// mismatch alike.
	ErrInvalidCredentials = goerrors.New("invalid email or password", goerrors.CategoryAuth).
		WithTextCode("INVALID_CREDENTIALS").
		WithCode(goerrors.CodeUnauthorized)

	// ErrUseProviderSignin steers provider-only accounts away from the
	// password form.
	ErrUseProviderSignin = goerrors.New("this account uses Google sign-in, continue with Google", goerrors.CategoryAuth).
		WithTextCode("USE_PROVIDER_SIGNIN").
		WithCode(goerrors.CodeUnauthorized)

	// ErrActivationRequired is returned after a fresh activation link
	// has been dispatched to an inactive account.
	ErrActivationRequired = goerrors.New("account not activated, check your email for a new activation link", goerrors.CategoryAuth).
		WithTextCode("ACTIVATION_REQUIRED").
		WithCode(goerrors.CodeUnauthorized)

	// ErrInvalidActivationToken is returned when no account carries
	// the presented token.
	ErrInvalidActivationToken = goerrors.New("invalid activation link", goerrors.CategoryNotFound).
		WithTextCode("INVALID_ACTIVATION_TOKEN").
		WithCode(goerrors.CodeNotFound)

	// ErrExpiredActivationToken is returned when the token exists but
	// its expiry has passed.
	ErrExpiredActivationToken = goerrors.New("activation link has expired", goerrors.CategoryAuth).
		WithTextCode("EXPIRED_ACTIVATION_TOKEN").
		WithCode(goerrors.CodeUnauthorized)

	// ErrInvalidOrExpiredCode covers never-issued, expired and
	// already-consumed OTPs alike.
	ErrInvalidOrExpiredCode = goerrors.New("invalid or expired code", goerrors.CategoryAuth).
		WithTextCode("INVALID_OR_EXPIRED_CODE").
		WithCode(goerrors.CodeUnauthorized)

	// ErrNoPendingLogin is returned when an OTP step arrives without a
	// preceding password verification.
	ErrNoPendingLogin = goerrors.New("no sign-in in progress", goerrors.CategoryAuth).
		WithTextCode("NO_PENDING_LOGIN").
		WithCode(goerrors.CodeUnauthorized)

	// ErrAccountMismatch guards against a linked account whose stored
	// email no longer matches the provider identity.
	ErrAccountMismatch = goerrors.New("account does not match provider identity", goerrors.CategoryAuth).
		WithTextCode("ACCOUNT_MISMATCH").
		WithCode(goerrors.CodeUnauthorized)

	// ErrNotAuthenticated is returned by the route guard for sessions
	// without a resolvable account.
	ErrNotAuthenticated = goerrors.New("sign in required", goerrors.CategoryAuth).
		WithTextCode("NOT_AUTHENTICATED").
		WithCode(goerrors.CodeUnauthorized)
)
