package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ProtocolError reports a well-formed transport response whose payload does
// not match the expected shape. Field names the offending field when known.
type ProtocolError struct {
	Model  string
	Field  string
	Reason string
}

func (e *ProtocolError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("protocol error: %s.%s: %s", e.Model, e.Field, e.Reason)
	}
	return fmt.Sprintf("protocol error: %s: %s", e.Model, e.Reason)
}

func badPayload(model string, err error) *ProtocolError {
	return &ProtocolError{Model: model, Reason: "malformed JSON payload: " + err.Error()}
}

func missing(model, field string) *ProtocolError {
	return &ProtocolError{Model: model, Field: field, Reason: "missing required field"}
}

func parseUUID(model, field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &ProtocolError{Model: model, Field: field, Reason: "invalid UUID: " + err.Error()}
	}
	return id, nil
}

// ParseUserStatus translates a user-status response body.
func ParseUserStatus(data []byte) (*UserStatus, error) {
	var wire struct {
		AccountStatus        *string `json:"accountStatus"`
		AuthenticationMethod *string `json:"authenticationMethod"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, badPayload("UserStatus", err)
	}
	if wire.AccountStatus == nil {
		return nil, missing("UserStatus", "accountStatus")
	}
	if wire.AuthenticationMethod == nil {
		return nil, missing("UserStatus", "authenticationMethod")
	}
	return &UserStatus{
		AccountStatus:        AccountStatus(*wire.AccountStatus),
		AuthenticationMethod: AuthenticationMethod(*wire.AuthenticationMethod),
	}, nil
}

// ParseChallenge translates a begin-login response body.
func ParseChallenge(data []byte) (*Challenge, error) {
	var wire struct {
		ChallengeID *string `json:"challengeId"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, badPayload("Challenge", err)
	}
	if wire.ChallengeID == nil || *wire.ChallengeID == "" {
		return nil, missing("Challenge", "challengeId")
	}
	id, err := parseUUID("Challenge", "challengeId", *wire.ChallengeID)
	if err != nil {
		return nil, err
	}
	return &Challenge{ChallengeID: id}, nil
}

// ParseLoginInformation translates a complete-login response body.
func ParseLoginInformation(data []byte) (*LoginInformation, error) {
	var wire struct {
		Account   *string `json:"account"`
		Token     *string `json:"token"`
		TokenType *string `json:"tokenType"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, badPayload("LoginInformation", err)
	}
	if wire.Account == nil {
		return nil, missing("LoginInformation", "account")
	}
	if wire.Token == nil || *wire.Token == "" {
		return nil, missing("LoginInformation", "token")
	}
	info := &LoginInformation{Account: *wire.Account, Token: *wire.Token, TokenType: "Bearer"}
	if wire.TokenType != nil {
		info.TokenType = *wire.TokenType
	}
	return info, nil
}

type deviceWire struct {
	SerialNumber        *string `json:"serialNumber"`
	Name                *string `json:"name"`
	Version             *string `json:"version"`
	LocalCredentials    *string `json:"localCredentials"`
	AutoUpdate          bool    `json:"autoUpdate"`
	NewVersionAvailable bool    `json:"newVersionAvailable"`
	ProductType         *string `json:"productType"`
	Category            *string `json:"category"`
	ConnectionCategory  *string `json:"connectionCategory"`
}

func (w *deviceWire) toDevice() (Device, error) {
	if w.SerialNumber == nil || *w.SerialNumber == "" {
		return Device{}, missing("Device", "serialNumber")
	}
	if w.Name == nil {
		return Device{}, missing("Device", "name")
	}
	if w.ProductType == nil {
		return Device{}, missing("Device", "productType")
	}
	d := Device{
		SerialNumber:        *w.SerialNumber,
		Name:                *w.Name,
		AutoUpdate:          w.AutoUpdate,
		NewVersionAvailable: w.NewVersionAvailable,
		ProductType:         *w.ProductType,
	}
	if w.Version != nil {
		d.Version = *w.Version
	}
	if w.LocalCredentials != nil {
		d.LocalCredentials = *w.LocalCredentials
	}
	if w.Category != nil {
		d.Category = *w.Category
	}
	if w.ConnectionCategory != nil {
		d.ConnectionCategory = *w.ConnectionCategory
	}
	return d, nil
}

// ParseDevices translates a device manifest response body. The backend's
// ordering is preserved.
func ParseDevices(data []byte) ([]Device, error) {
	var wires []deviceWire
	if err := json.Unmarshal(data, &wires); err != nil {
		return nil, badPayload("Device", err)
	}
	devices := make([]Device, 0, len(wires))
	for i := range wires {
		d, err := wires[i].toDevice()
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// ParseIoTData translates an iot-credentials response body. The payload uses
// PascalCase field names.
func ParseIoTData(data []byte) (*IoTData, error) {
	var wire struct {
		Endpoint       *string `json:"Endpoint"`
		IoTCredentials *struct {
			ClientID             *string `json:"ClientId"`
			CustomAuthorizerName *string `json:"CustomAuthorizerName"`
			TokenKey             *string `json:"TokenKey"`
			TokenSignature       *string `json:"TokenSignature"`
			TokenValue           *string `json:"TokenValue"`
		} `json:"IoTCredentials"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, badPayload("IoTData", err)
	}
	if wire.Endpoint == nil || *wire.Endpoint == "" {
		return nil, missing("IoTData", "Endpoint")
	}
	if wire.IoTCredentials == nil {
		return nil, missing("IoTData", "IoTCredentials")
	}
	creds := wire.IoTCredentials
	for field, v := range map[string]*string{
		"IoTCredentials.ClientId":             creds.ClientID,
		"IoTCredentials.CustomAuthorizerName": creds.CustomAuthorizerName,
		"IoTCredentials.TokenKey":             creds.TokenKey,
		"IoTCredentials.TokenSignature":       creds.TokenSignature,
		"IoTCredentials.TokenValue":           creds.TokenValue,
	} {
		if v == nil {
			return nil, missing("IoTData", field)
		}
	}
	clientID, err := parseUUID("IoTData", "IoTCredentials.ClientId", *creds.ClientID)
	if err != nil {
		return nil, err
	}
	tokenValue, err := parseUUID("IoTData", "IoTCredentials.TokenValue", *creds.TokenValue)
	if err != nil {
		return nil, err
	}
	return &IoTData{
		Endpoint: *wire.Endpoint,
		IoTCredentials: IoTCredentials{
			ClientID:             clientID,
			CustomAuthorizerName: *creds.CustomAuthorizerName,
			TokenKey:             *creds.TokenKey,
			TokenSignature:       *creds.TokenSignature,
			TokenValue:           tokenValue,
		},
	}, nil
}

// ParsePendingRelease translates a pending-release response body.
func ParsePendingRelease(data []byte) (*PendingRelease, error) {
	var wire struct {
		Version *string `json:"version"`
		Pushed  *bool   `json:"pushed"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, badPayload("PendingRelease", err)
	}
	if wire.Version == nil || *wire.Version == "" {
		return nil, missing("PendingRelease", "version")
	}
	if wire.Pushed == nil {
		return nil, missing("PendingRelease", "pushed")
	}
	return &PendingRelease{Version: *wire.Version, Pushed: *wire.Pushed}, nil
}
