// Package models defines the record types returned by the Dyson cloud API
// and the translators that build them from raw response payloads.
//
// Every record has exactly one translator which validates the payload up
// front and fails with a *ProtocolError naming the offending field, instead
// of deferring missing-field failures to the point of use.
package models

import (
	"github.com/google/uuid"
)

// AccountStatus reports whether an account is active on the backend.
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "ACTIVE"
	AccountStatusUnknown  AccountStatus = "UNKNOWN"
	AccountStatusInactive AccountStatus = "INACTIVE"
)

// AuthenticationMethod is the login mechanism the backend expects for an
// account.
type AuthenticationMethod string

const (
	// AuthMethodEmailPwd2FA is the email OTP flow used everywhere.
	AuthMethodEmailPwd2FA AuthenticationMethod = "EMAIL_PWD_2FA"
	// AuthMethodMobileOTP is the SMS OTP flow, available on the CN backend.
	AuthMethodMobileOTP AuthenticationMethod = "MOBILE_OTP"
)

// UserStatus is the backend's view of an account prior to login.
type UserStatus struct {
	AccountStatus        AccountStatus
	AuthenticationMethod AuthenticationMethod
}

// Challenge correlates a begin-login call with its matching complete-login
// call. The ID is consumed exactly once by the backend.
type Challenge struct {
	ChallengeID uuid.UUID
}

// LoginInformation is the bearer credential issued by a successful
// complete-login call.
type LoginInformation struct {
	Account   string
	Token     string
	TokenType string
}

// Device is an immutable snapshot of one device from the account manifest.
// LocalCredentials holds the base64-encoded encrypted local broker
// credential blob; it is empty for products without local connectivity.
type Device struct {
	SerialNumber        string
	Name                string
	Version             string
	LocalCredentials    string
	AutoUpdate          bool
	NewVersionAvailable bool
	ProductType         string
	Category            string
	ConnectionCategory  string
}

// LocalCredentials is the decrypted username/password pair for a device's
// on-device MQTT broker. It is never persisted by this library.
type LocalCredentials struct {
	Username string
	Password string
}

// IoTCredentials carries the per-device AWS IoT authorizer material.
type IoTCredentials struct {
	ClientID             uuid.UUID
	CustomAuthorizerName string
	TokenKey             string
	TokenSignature       string
	TokenValue           uuid.UUID
}

// IoTData pairs the remote MQTT endpoint with its credentials.
type IoTData struct {
	Endpoint       string
	IoTCredentials IoTCredentials
}

// PendingRelease describes a firmware release staged for a device.
type PendingRelease struct {
	Version string
	Pushed  bool
}
