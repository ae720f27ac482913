package sharelink

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	code := Generate("oslo-volley", "wss://relay.example.com/relay/v1/ws", NewSecret())
	assert.NotEmpty(t, code, "Encoded code should not be empty")
}

func TestDecode(t *testing.T) {
	secret := NewSecret()
	code := Generate("oslo-volley", "wss://relay.example.com/relay/v1/ws", secret)

	link, err := Decode(code)

	assert.Nil(t, err, "Should not have an error during decoding")
	assert.Equal(t, "oslo-volley", link.OrganizationID, "Decoded organization should match the original")
	assert.Equal(t, "wss://relay.example.com/relay/v1/ws", link.RelayURL, "Decoded relay URL should match the original")
	assert.Equal(t, secret, link.Secret, "Decoded secret should match the original")
}

func TestDecode_ErrorHandling(t *testing.T) {
	_, err := Decode("this is not a base64 string")
	assert.NotNil(t, err, "Expected an error for incorrect base64 string")

	// Valid base64 but wrong payload shape.
	_, err = Decode("b25seS1vbmUtcGFydA==")
	assert.NotNil(t, err, "Expected an error for malformed payload")
}
