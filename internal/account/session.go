package account

// Session is the state-machine-visible slice of the server side
// session. It holds at most one of: an authenticated account id, or
// the transient pending-login sub-state between password verification
// and OTP verification. Never both.
//
// The value is threaded explicitly through each operation so the
// transitions stay unit-testable without an HTTP layer; the api
// package persists it under the cookie-bound session id.
type Session struct {
	UserID            string `json:"user,omitempty"`
	PendingLogin      bool   `json:"pendingLogin,omitempty"`
	PendingLoginEmail string `json:"pendingLoginEmail,omitempty"`
}

// Authenticated reports whether the session carries an account id.
func (s *Session) Authenticated() bool {
	return s.UserID != ""
}

// Establish binds the session to an account, clearing any pending
// login state.
func (s *Session) Establish(accountID string) {
	s.UserID = accountID
	s.PendingLogin = false
	s.PendingLoginEmail = ""
}

// BeginPendingLogin moves the session into the OTP gate. Any previous
// authentication is dropped.
func (s *Session) BeginPendingLogin(email string) {
	s.UserID = ""
	s.PendingLogin = true
	s.PendingLoginEmail = email
}

// Clear resets the session to anonymous.
func (s *Session) Clear() {
	s.UserID = ""
	s.PendingLogin = false
	s.PendingLoginEmail = ""
}
