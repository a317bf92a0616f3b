package account

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"

	"github.com/loadxpress/loadxpress/internal/captcha"
	"github.com/loadxpress/loadxpress/internal/credential"
	"github.com/loadxpress/loadxpress/internal/logger"
	"github.com/loadxpress/loadxpress/internal/model"
	"github.com/loadxpress/loadxpress/internal/store"
)

const (
	// ActivationTTL bounds the lifetime of an activation link.
	ActivationTTL = 30 * time.Minute
	// OTPTTL bounds the lifetime of a login code.
	OTPTTL = 5 * time.Minute
)

// UserStore is the slice of the accounts repository the state machine
// needs.
type UserStore interface {
	ByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
	ByEmail(ctx context.Context, email string) (*model.Account, error)
	ByActivationCode(ctx context.Context, code string) (*model.Account, error)
	ByGoogleID(ctx context.Context, sub string) (*model.Account, error)
	FindCollision(ctx context.Context, candidate *model.Account) (*model.Account, error)
	Register(ctx context.Context, record *model.Account) (*model.Account, error)
	RefreshActivation(ctx context.Context, id uuid.UUID, code string, expires time.Time) error
	MarkActivated(ctx context.Context, id uuid.UUID) error
	LinkGoogle(ctx context.Context, id uuid.UUID, sub string) error
	TrackLogin(ctx context.Context, id uuid.UUID) error
}

// CodeStore is the slice of the one time code store the state machine
// needs.
type CodeStore interface {
	Put(ctx context.Context, kind store.CodeKind, email, code string, ttl time.Duration) error
	Consume(ctx context.Context, kind store.CodeKind, email, code string) (bool, error)
}

// Mailer dispatches lifecycle emails. Failures are logged, never
// retried, and never roll back a state change already persisted.
type Mailer interface {
	SendActivationEmail(ctx context.Context, to, token string) error
	SendOTPEmail(ctx context.Context, to, code string) error
}

// IdentityVerifier validates external provider tokens.
type IdentityVerifier interface {
	VerifyIDToken(ctx context.Context, raw string) (*credential.Profile, error)
}

// ActivateOutcome distinguishes a completed activation from the
// idempotent already-activated case, which redirects to sign in.
type ActivateOutcome int

const (
	// ActivationCompleted means the account just became active and a
	// session was established.
	ActivationCompleted ActivateOutcome = iota
	// ActivationAlreadyDone means the link was used before; not an
	// error, the caller redirects to sign in.
	ActivationAlreadyDone
)

// Lifecycle orchestrates signup, activation, sign in and OTP
// verification over the stores and the credential verifier.
type Lifecycle struct {
	users   UserStore
	codes   CodeStore
	mailer  Mailer
	captcha captcha.Verifier
	google  IdentityVerifier
	logger  logger.Logger

	now                func() time.Time
	newOTP             func() (string, error)
	newActivationToken func() string
	newUID             func() string
}

// Option customizes the lifecycle.
type Option func(*Lifecycle)

// WithMailer sets the email dispatcher.
func WithMailer(m Mailer) Option {
	return func(l *Lifecycle) {
		l.mailer = m
	}
}

// WithCaptcha enables human verification on signup and sign in.
func WithCaptcha(v captcha.Verifier) Option {
	return func(l *Lifecycle) {
		l.captcha = v
	}
}

// WithIdentityVerifier enables the external provider flows.
func WithIdentityVerifier(v IdentityVerifier) Option {
	return func(l *Lifecycle) {
		l.google = v
	}
}

// WithLogger overrides the logger.
func WithLogger(log logger.Logger) Option {
	return func(l *Lifecycle) {
		if log != nil {
			l.logger = log
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(l *Lifecycle) {
		if clock != nil {
			l.now = clock
		}
	}
}

// WithOTPSource overrides OTP generation (useful for tests).
func WithOTPSource(gen func() (string, error)) Option {
	return func(l *Lifecycle) {
		if gen != nil {
			l.newOTP = gen
		}
	}
}

// WithActivationTokenSource overrides token generation (useful for
// tests).
func WithActivationTokenSource(gen func() string) Option {
	return func(l *Lifecycle) {
		if gen != nil {
			l.newActivationToken = gen
		}
	}
}

// NewLifecycle builds the state machine over the given stores.
func NewLifecycle(users UserStore, codes CodeStore, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		users:              users,
		codes:              codes,
		logger:             logger.NewNop(),
		now:                time.Now,
		newOTP:             credential.GenerateOTP,
		newActivationToken: credential.GenerateActivationToken,
		newUID:             func() string { return ksuid.New().String() },
	}

	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}

	return l
}

// Signup registers a local email+phone+password account in
// PendingActivation state and dispatches the activation link.
//
// A collision with any existing account fails with the one generic
// registration error; if the colliding account is itself still
// pending activation, a fresh link is transparently re-sent first.
func (l *Lifecycle) Signup(ctx context.Context, input SignupInput) error {
	if err := input.Validate(); err != nil {
		return goerrors.FromOzzoValidation(err, "invalid signup payload")
	}

	if err := l.verifyChallenge(ctx, input.CaptchaToken, input.RemoteIP); err != nil {
		return err
	}

	candidate := &model.Account{
		UID:        l.newUID(),
		Email:      strings.ToLower(strings.TrimSpace(input.Email)),
		Phone:      input.Phone,
		SignupWith: model.SignupEmail,
	}

	if err := l.failOnCollision(ctx, candidate); err != nil {
		return err
	}

	hash, err := credential.HashPassword(input.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	token := l.newActivationToken()
	expires := l.now().Add(ActivationTTL)

	candidate.PasswordHash = hash
	candidate.Activated = false
	candidate.ActivationCode = token
	candidate.ActivationCodeExpires = &expires

	if _, err := l.users.Register(ctx, candidate); err != nil {
		if store.IsDuplicate(err) || isConflict(err) {
			// lost the race against a concurrent signup
			return ErrCannotRegister
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create account")
	}

	l.dispatchActivation(ctx, candidate.Email, token)

	return nil
}

// SignupWithGoogle creates a pre-activated account from a verified
// provider identity and establishes a session immediately.
func (l *Lifecycle) SignupWithGoogle(ctx context.Context, sess *Session, idToken string) error {
	profile, err := l.verifyProvider(ctx, idToken)
	if err != nil {
		return err
	}

	candidate := &model.Account{
		UID:        l.newUID(),
		Email:      strings.ToLower(profile.Email),
		GoogleID:   profile.Subject,
		SignupWith: model.SignupGoogle,
		FirstName:  profile.GivenName,
		LastName:   profile.FamilyName,
		Picture:    profile.Picture,
		Activated:  true,
	}

	if err := l.failOnCollision(ctx, candidate); err != nil {
		return err
	}

	created, err := l.users.Register(ctx, candidate)
	if err != nil {
		if store.IsDuplicate(err) || isConflict(err) {
			return ErrCannotRegister
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create account")
	}

	sess.Establish(created.ID.String())
	return nil
}

// Activate consumes an activation token. Reusing a token on an
// already active account is an idempotent no-op, not an error.
func (l *Lifecycle) Activate(ctx context.Context, sess *Session, token string) (ActivateOutcome, error) {
	if token == "" {
		return 0, ErrInvalidActivationToken
	}

	user, err := l.users.ByActivationCode(ctx, token)
	if err != nil {
		if store.IsNotFound(err) {
			return 0, ErrInvalidActivationToken
		}
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "activation lookup failed")
	}

	if user.Activated {
		return ActivationAlreadyDone, nil
	}

	if user.ActivationExpired(l.now()) {
		return 0, ErrExpiredActivationToken
	}

	if err := l.users.MarkActivated(ctx, user.ID); err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to activate account")
	}

	sess.Establish(user.ID.String())
	return ActivationCompleted, nil
}

// Signin verifies email+password and, on success, parks the session
// in PendingLogin behind an emailed OTP. It never authenticates the
// session directly.
func (l *Lifecycle) Signin(ctx context.Context, sess *Session, input SigninInput) error {
	if err := input.Validate(); err != nil {
		return goerrors.FromOzzoValidation(err, "invalid sign-in payload")
	}

	if err := l.verifyChallenge(ctx, input.CaptchaToken, input.RemoteIP); err != nil {
		return err
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))

	user, err := l.users.ByEmail(ctx, email)
	if err != nil {
		if store.IsNotFound(err) {
			return ErrInvalidCredentials
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "sign-in lookup failed")
	}

	if !user.HasPassword() {
		if user.GoogleID != "" {
			return ErrUseProviderSignin
		}
		return ErrInvalidCredentials
	}

	if err := credential.ComparePasswordAndHash(input.Password, user.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	if !user.Activated {
		token := l.newActivationToken()
		if err := l.users.RefreshActivation(ctx, user.ID, token, l.now().Add(ActivationTTL)); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to refresh activation")
		}
		l.dispatchActivation(ctx, user.Email, token)
		return ErrActivationRequired
	}

	if err := l.issueOTP(ctx, user.Email); err != nil {
		return err
	}

	sess.BeginPendingLogin(user.Email)
	return nil
}

// SigninWithGoogle verifies the provider token and establishes a
// session immediately; there is no OTP step for provider sign in. A
// locally registered account authenticating via the provider for the
// first time gets the provider id linked, which also counts as
// activation proof.
func (l *Lifecycle) SigninWithGoogle(ctx context.Context, sess *Session, idToken string) error {
	profile, err := l.verifyProvider(ctx, idToken)
	if err != nil {
		return err
	}

	email := strings.ToLower(profile.Email)

	user, err := l.users.ByGoogleID(ctx, profile.Subject)
	if err != nil && !store.IsNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "provider sign-in lookup failed")
	}

	if user != nil {
		if !strings.EqualFold(user.Email, email) {
			return ErrAccountMismatch
		}
	} else {
		user, err = l.users.ByEmail(ctx, email)
		if err != nil {
			if store.IsNotFound(err) {
				return ErrInvalidCredentials
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "provider sign-in lookup failed")
		}

		if err := l.users.LinkGoogle(ctx, user.ID, profile.Subject); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to link provider identity")
		}
	}

	if err := l.users.TrackLogin(ctx, user.ID); err != nil {
		l.logger.Error("failed to track provider login", "error", err, "account", user.ID.String())
	}

	sess.Establish(user.ID.String())
	return nil
}

// VerifyOTP completes a pending login. The consumed code is deleted
// before the session is authenticated, so a replay always observes
// absence and fails generically.
func (l *Lifecycle) VerifyOTP(ctx context.Context, sess *Session, input OTPInput) error {
	if !sess.PendingLogin || sess.PendingLoginEmail == "" {
		return ErrNoPendingLogin
	}

	if err := input.Validate(); err != nil {
		return goerrors.FromOzzoValidation(err, "invalid code payload")
	}

	ok, err := l.codes.Consume(ctx, store.KindLogin, sess.PendingLoginEmail, input.Code)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "code verification failed")
	}
	if !ok {
		return ErrInvalidOrExpiredCode
	}

	user, err := l.users.ByEmail(ctx, sess.PendingLoginEmail)
	if err != nil || !user.Activated {
		sess.Clear()
		return ErrInvalidOrExpiredCode
	}

	if err := l.users.TrackLogin(ctx, user.ID); err != nil {
		l.logger.Error("failed to track login", "error", err, "account", user.ID.String())
	}

	sess.Establish(user.ID.String())
	return nil
}

// ResendOTP issues a fresh login code for a pending login. It never
// reveals whether the previous code was still valid.
func (l *Lifecycle) ResendOTP(ctx context.Context, sess *Session) error {
	if !sess.PendingLogin || sess.PendingLoginEmail == "" {
		return ErrNoPendingLogin
	}

	return l.issueOTP(ctx, sess.PendingLoginEmail)
}

// Authenticate resolves the session's account against the store on
// every request. A session referencing a since-deleted account is
// cleared rather than trusted.
func (l *Lifecycle) Authenticate(ctx context.Context, sess *Session) (*model.Account, error) {
	if !sess.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	id, err := uuid.Parse(sess.UserID)
	if err != nil {
		sess.Clear()
		return nil, ErrNotAuthenticated
	}

	user, err := l.users.ByID(ctx, id)
	if err != nil {
		sess.Clear()
		if store.IsNotFound(err) {
			return nil, ErrNotAuthenticated
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "session lookup failed")
	}

	return user, nil
}

func (l *Lifecycle) issueOTP(ctx context.Context, email string) error {
	code, err := l.newOTP()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate login code")
	}

	if err := l.codes.Put(ctx, store.KindLogin, email, code, OTPTTL); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store login code")
	}

	if l.mailer != nil {
		if err := l.mailer.SendOTPEmail(ctx, email, code); err != nil {
			l.logger.Error("failed to send otp email", "error", err, "to", email)
		}
	}

	return nil
}

// failOnCollision applies the signup collision policy: a pending
// account gets a fresh activation link re-sent, and every collision
// fails with the same generic error.
func (l *Lifecycle) failOnCollision(ctx context.Context, candidate *model.Account) error {
	existing, err := l.users.FindCollision(ctx, candidate)
	if err != nil {
		if store.IsNotFound(err) {
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "signup collision check failed")
	}

	if !existing.Activated {
		token := l.newActivationToken()
		if err := l.users.RefreshActivation(ctx, existing.ID, token, l.now().Add(ActivationTTL)); err != nil {
			l.logger.Error("failed to refresh activation for pending account", "error", err)
		} else {
			l.dispatchActivation(ctx, existing.Email, token)
		}
	}

	return ErrCannotRegister
}

func (l *Lifecycle) verifyProvider(ctx context.Context, idToken string) (*credential.Profile, error) {
	if l.google == nil {
		return nil, credential.ErrInvalidProviderToken
	}
	return l.google.VerifyIDToken(ctx, idToken)
}

func (l *Lifecycle) verifyChallenge(ctx context.Context, token, remoteIP string) error {
	if l.captcha == nil {
		return nil
	}
	return l.captcha.Verify(ctx, token, remoteIP)
}

func (l *Lifecycle) dispatchActivation(ctx context.Context, email, token string) {
	if l.mailer == nil {
		return
	}
	if err := l.mailer.SendActivationEmail(ctx, email, token); err != nil {
		l.logger.Error("failed to send activation email", "error", err, "to", email)
	}
}

func isConflict(err error) bool {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.Category == goerrors.CategoryConflict
	}
	return false
}
