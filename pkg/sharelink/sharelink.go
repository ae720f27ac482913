package sharelink

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samborkent/uuidv7"
)

// Link carries what a console needs to join an organization's shared state:
// which organization to scope documents under, where the relay lives, and
// the secret proving the holder was invited.
type Link struct {
	OrganizationID string
	RelayURL       string
	Secret         string
}

// NewSecret returns a fresh secret for an organization's share links.
func NewSecret() string {
	return uuidv7.New().String()
}

// Generate encodes a share link code for the given organization.
func Generate(organizationID, relayURL, secret string) string {
	code := fmt.Sprintf("%s|%s|%s", organizationID, relayURL, secret)
	return base64.URLEncoding.EncodeToString([]byte(code))
}

// Decode parses a share link code back into its parts.
func Decode(code string) (Link, error) {
	decodedBytes, err := base64.URLEncoding.DecodeString(code)
	if err != nil {
		return Link{}, err
	}
	res := strings.Split(string(decodedBytes), "|")
	if len(res) != 3 {
		return Link{}, fmt.Errorf("not correct format")
	}
	return Link{
		OrganizationID: res[0],
		RelayURL:       res[1],
		Secret:         res[2],
	}, nil
}
