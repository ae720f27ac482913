package admin

import (
	"context"
	"errors"
	"net/http"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	auth "firebase.google.com/go/v4/auth"
	"github.com/rs/zerolog"
	"github.com/xorcare/pointer"

	"github.com/gin-gonic/gin"
	"github.com/nvbf/scoreboard-sync/pkg/sharelink"
	resend "github.com/nvbf/scoreboard-sync/repos/resend"
)

var ErrInvalidShareLink = errors.New("share link does not match organization secret")

// OrganizationSecrets is the per-organization bootstrap record: the share
// link secret and the users allowed to run consoles.
type OrganizationSecrets struct {
	OrganizationID *string  `firestore:"OrganizationId"`
	Secret         *string  `firestore:"Secret"`
	AllowedUsers   []string `firestore:"allowedUsers"`
}

type AdminService struct {
	firestoreClient *firestore.Client
	firebaseApp     *firebase.App
	resendService   *resend.Service
	relayURL        string
	log             zerolog.Logger
}

func NewAdminService(firestoreClient *firestore.Client, firebaseApp *firebase.App, resendService *resend.Service, relayURL string, logger zerolog.Logger) *AdminService {
	return &AdminService{
		firestoreClient: firestoreClient,
		firebaseApp:     firebaseApp,
		resendService:   resendService,
		relayURL:        relayURL,
		log:             logger,
	}
}

// EnsureOrganization creates the secrets record for an organization if it
// does not exist yet.
func (s *AdminService) EnsureOrganization(c *gin.Context, organizationID string) error {
	docRef := s.firestoreClient.Collection("OrganizationSecrets").Doc(organizationID)

	doc, _ := docRef.Get(c)
	if doc.Exists() {
		return nil
	}

	secrets := OrganizationSecrets{
		OrganizationID: pointer.String(organizationID),
		Secret:         pointer.String(sharelink.NewSecret()),
	}
	if _, err := docRef.Set(c, secrets); err != nil {
		s.log.Warn().Err(err).Str("organization", organizationID).Msg("failed to create organization secrets")
		return err
	}
	return nil
}

// ClaimAccess mails the requester a console share link for the
// organization and records the claiming user.
func (s *AdminService) ClaimAccess(c *gin.Context, request resend.AccessRequest) error {
	token := c.MustGet("token").(*auth.Token)

	secret, err := s.organizationSecret(c, request.OrganizationID)
	if err != nil {
		return err
	}

	code := sharelink.Generate(request.OrganizationID, s.relayURL, secret)

	err = s.resendService.SendConsoleLink(c, request, code)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send mail request"})
		c.Abort()
		return err
	}

	// The grant runs detached: the request context ends with the handler.
	go s.resendService.GrantAccess(context.Background(), request.OrganizationID, token.UID)
	return nil
}

// AddConsoleAccess grants the calling user console access when the share
// link secret matches the organization's record.
func (s *AdminService) AddConsoleAccess(c *gin.Context, link sharelink.Link) error {
	token := c.MustGet("token").(*auth.Token)

	secret, err := s.organizationSecret(c, link.OrganizationID)
	if err != nil {
		return err
	}

	if link.Secret != secret {
		return ErrInvalidShareLink
	}
	return s.resendService.GrantAccess(c, link.OrganizationID, token.UID)
}

func (s *AdminService) organizationSecret(c *gin.Context, organizationID string) (string, error) {
	doc, err := s.firestoreClient.Collection("OrganizationSecrets").Doc(organizationID).Get(c)
	if err != nil {
		s.log.Warn().Err(err).Str("organization", organizationID).Msg("failed to get organization secrets")
		return "", err
	}

	var secrets OrganizationSecrets
	if err := doc.DataTo(&secrets); err != nil {
		s.log.Error().Err(err).Str("organization", organizationID).Msg("consistency error decoding organization secrets")
		return "", err
	}
	if secrets.Secret == nil {
		return "", errors.New("organization has no share link secret")
	}
	return *secrets.Secret, nil
}
