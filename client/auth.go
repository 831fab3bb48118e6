package client

import (
	"context"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/cmgrayb/libdyson-rest/account"
	"github.com/cmgrayb/libdyson-rest/models"
)

// authState tracks the login flow for one client instance.
type authState int

const (
	authUnstarted authState = iota
	authChallengeIssued
	authAuthenticated
)

// AuthStatus tells an Authenticate caller whether the flow finished or is
// waiting for an OTP code.
type AuthStatus int

const (
	// AuthPending means a challenge was issued and an OTP code is needed to
	// finish. This is a normal outcome, not a failure.
	AuthPending AuthStatus = iota
	// AuthCompleted means a bearer credential was obtained.
	AuthCompleted
)

// AuthOutcome is the result of the composite Authenticate call. Challenge is
// set when Status is AuthPending, Login when Status is AuthCompleted.
type AuthOutcome struct {
	Status    AuthStatus
	Challenge *models.Challenge
	Login     *models.LoginInformation
}

// GetUserStatus looks up the account's status and expected authentication
// method for the configured identifier.
func (c *Client) GetUserStatus(ctx context.Context) (*models.UserStatus, error) {
	ident, err := c.requireIdentifier()
	if err != nil {
		return nil, err
	}

	q := url.Values{"country": {c.country}}
	body, err := c.doJSON(ctx, http.MethodPost, userAPIPath(ident, "userstatus"), q, identifierBody(ident), false)
	if err != nil {
		return nil, err
	}
	return models.ParseUserStatus(body)
}

// BeginLogin starts the challenge/response flow: the backend issues a
// challenge ID and delivers an OTP code out of band (email, or SMS for
// mobile identifiers). The returned challenge ID becomes the implicit
// default for a subsequent CompleteLogin; calling BeginLogin again discards
// the previous one.
func (c *Client) BeginLogin(ctx context.Context) (*models.Challenge, error) {
	ident, err := c.requireIdentifier()
	if err != nil {
		return nil, err
	}

	q := url.Values{"country": {c.country}, "culture": {c.culture}}
	body, err := c.doJSON(ctx, http.MethodPost, userAPIPath(ident, "auth"), q, identifierBody(ident), false)
	if err != nil {
		return nil, err
	}
	challenge, err := models.ParseChallenge(body)
	if err != nil {
		return nil, err
	}

	c.challengeID = challenge.ChallengeID.String()
	c.state = authChallengeIssued
	c.log.Debug("login challenge issued", zap.String("challengeId", c.challengeID))
	return challenge, nil
}

// CompleteLogin finishes the flow with the OTP code the user received. An
// empty challengeID falls back to the ID tracked from the most recent
// BeginLogin; the backend remains authoritative, so an explicit ID from an
// earlier challenge is passed through untouched. On success the bearer
// credential is stored in the vault and all authenticated calls use it.
func (c *Client) CompleteLogin(ctx context.Context, challengeID, otpCode string) (*models.LoginInformation, error) {
	ident, err := c.requireIdentifier()
	if err != nil {
		return nil, err
	}
	if otpCode == "" {
		return nil, rejected("an OTP code is required to complete login")
	}
	if challengeID == "" {
		if c.challengeID == "" {
			return nil, rejected("no challenge in progress; call BeginLogin first or pass a challenge ID")
		}
		challengeID = c.challengeID
	}

	reqBody := identifierBody(ident)
	reqBody["challengeId"] = challengeID
	reqBody["otpCode"] = otpCode
	if ident.Kind == account.KindEmail && c.password != "" {
		reqBody["password"] = c.password
	}

	q := url.Values{"country": {c.country}}
	body, err := c.doJSON(ctx, http.MethodPost, userAPIPath(ident, "verify"), q, reqBody, false)
	if err != nil {
		return nil, err
	}
	info, err := models.ParseLoginInformation(body)
	if err != nil {
		return nil, err
	}

	c.token = info.Token
	c.accountID = info.Account
	c.challengeID = ""
	c.state = authAuthenticated
	c.log.Debug("login completed", zap.String("account", info.Account))
	return info, nil
}

// Authenticate is the one-call convenience over BeginLogin/CompleteLogin.
// With an empty otpCode it only issues a (fresh) challenge and reports
// AuthPending; calling it again without a code is harmless and re-arms the
// challenge. With a code it runs the full begin/complete sequence.
func (c *Client) Authenticate(ctx context.Context, otpCode string) (*AuthOutcome, error) {
	challenge, err := c.BeginLogin(ctx)
	if err != nil {
		return nil, err
	}
	if otpCode == "" {
		return &AuthOutcome{Status: AuthPending, Challenge: challenge}, nil
	}

	info, err := c.CompleteLogin(ctx, challenge.ChallengeID.String(), otpCode)
	if err != nil {
		return nil, err
	}
	return &AuthOutcome{Status: AuthCompleted, Login: info}, nil
}

// AuthToken exports the current bearer token, or "" when the vault is empty.
// The exported string is all a later session needs to skip the login flow.
func (c *Client) AuthToken() string { return c.token }

// SetAuthToken injects a previously exported bearer token, bypassing the
// login flow. No validation happens here; the backend judges the token on
// the first authenticated call.
func (c *Client) SetAuthToken(token string) {
	c.token = token
	if token == "" {
		c.state = authUnstarted
		return
	}
	c.state = authAuthenticated
}

// Account returns the account ID reported by the backend at login, or ""
// when the token was injected externally.
func (c *Client) Account() string { return c.accountID }

func (c *Client) requireIdentifier() (account.Identifier, error) {
	if !c.hasIdent {
		return account.Identifier{}, rejected("no account identifier configured")
	}
	return c.identifier, nil
}

// userAPIPath builds the user-registration endpoint path for the identifier
// class. The mobile family is only served by the CN backend.
func userAPIPath(ident account.Identifier, op string) string {
	if ident.Kind == account.KindMobile {
		return "/v3/userregistration/mobile/" + op
	}
	return "/v3/userregistration/email/" + op
}

func identifierBody(ident account.Identifier) map[string]string {
	if ident.Kind == account.KindMobile {
		return map[string]string{"mobile": ident.Value}
	}
	return map[string]string{"email": ident.Value}
}
