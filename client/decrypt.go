package client

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/cmgrayb/libdyson-rest/models"
)

// defaultLocalCredentialsKey returns the fixed 256-bit key shared by all
// devices of this product family: the byte sequence 1..32.
func defaultLocalCredentialsKey() []byte {
	key := make([]byte, localCredentialsKeySize)
	for i := range key {
		key[i] = byte(i + 1)
	}
	return key
}

// DecryptLocalCredentials reverses the encryption of a device's local broker
// credential blob and returns the embedded username/password pair. The
// username is by convention the device serial number; only the password is
// carried in the ciphertext.
//
// The decrypted plaintext is not always a single clean JSON document: some
// device firmwares (observed on vacuum robots with connection category
// "lecAndWifi") append extra JSON or stray bytes after the credential
// document, so only the first complete JSON value is parsed and the rest is
// discarded. On any failure past the base64 stage the full plaintext is
// logged at debug level and attached to the returned *DecryptionError for
// diagnostics.
//
// This method performs no I/O and is safe for concurrent use.
func (c *Client) DecryptLocalCredentials(blob, serial string) (*models.LocalCredentials, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, &DecryptionError{Stage: StageBase64, Msg: err.Error()}
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return nil, &DecryptionError{Stage: StageBase64, Msg: "ciphertext length is not a positive multiple of the AES block size"}
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, &DecryptionError{Stage: StageCipher, Msg: err.Error()}
	}
	plain := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, c.iv).CryptBlocks(plain, raw)
	text := string(stripPadding(plain))

	password, derr := extractBrokerPassword(text)
	if derr != nil {
		derr.plaintext = text
		c.log.Debug("local credential plaintext did not parse",
			zap.String("serial", serial),
			zap.String("stage", string(derr.Stage)),
			zap.String("plaintext", text))
		return nil, derr
	}

	return &models.LocalCredentials{Username: serial, Password: password}, nil
}

// stripPadding removes block padding from decrypted plaintext. Well-formed
// PKCS#7 padding is stripped when present; otherwise trailing NUL bytes are
// trimmed, which is what the device firmware actually pads with.
func stripPadding(plain []byte) []byte {
	if n := int(plain[len(plain)-1]); n >= 1 && n <= aes.BlockSize && n <= len(plain) {
		padded := true
		for _, b := range plain[len(plain)-n:] {
			if int(b) != n {
				padded = false
				break
			}
		}
		if padded {
			return plain[:len(plain)-n]
		}
	}
	for len(plain) > 0 && plain[len(plain)-1] == 0 {
		plain = plain[:len(plain)-1]
	}
	return plain
}

// extractBrokerPassword parses the first JSON value at the start of text and
// pulls the broker password out of it. Parsing the whole text as one
// document is known to be insufficient: affected firmwares leave trailing
// data after the first document, which a whole-string parse reports as an
// error at a fixed offset.
func extractBrokerPassword(text string) (string, *DecryptionError) {
	dec := json.NewDecoder(strings.NewReader(text))
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return "", &DecryptionError{Stage: StageJSONExtract, Msg: err.Error()}
	}

	password, ok := doc["apPasswordHash"].(string)
	if !ok || password == "" {
		return "", &DecryptionError{Stage: StageFieldMissing, Msg: `credential document has no "apPasswordHash" field`}
	}
	return password, nil
}
