package resend

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	resend "github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
)

// Service sends console share links by mail and records which users hold
// access to an organization's scoreboard state.
type Service struct {
	firestoreClient *firestore.Client
	resendClient    *resend.Client
	hostURL         string
	log             zerolog.Logger
}

// NewService creates a new mail service.
func NewService(firestoreClient *firestore.Client, resendKey, hostURL string, logger zerolog.Logger) *Service {
	return &Service{
		firestoreClient: firestoreClient,
		resendClient:    resend.NewClient(resendKey),
		hostURL:         hostURL,
		log:             logger,
	}
}

// SendConsoleLink mails the share link that opens a scorekeeper console
// for the requested organization.
func (s Service) SendConsoleLink(ctx context.Context, request AccessRequest, code string) error {
	body := getEmailTemplate(fmt.Sprintf("%s/console-access/%s", s.hostURL, code))
	params := &resend.SendEmailRequest{
		From:    "onboarding@resend.dev",
		To:      []string{request.Email},
		Subject: "Your scoreboard console link",
		Html:    body,
	}

	_, err := s.resendClient.Emails.Send(params)
	if err != nil {
		s.log.Error().Err(err).Str("organization", request.OrganizationID).Msg("failed to send console link mail")
		return err
	}
	return nil
}

// GrantAccess adds userID to the organization's allowed users, once.
func (s Service) GrantAccess(ctx context.Context, organizationID, userID string) error {
	docRef := s.firestoreClient.Collection("OrganizationSecrets").Doc(organizationID)

	err := s.firestoreClient.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(docRef)
		if err != nil {
			return err
		}

		var allowedUsers []string
		if data, err := doc.DataAt("allowedUsers"); err == nil {
			if users, ok := data.([]interface{}); ok {
				for _, user := range users {
					if userStr, ok := user.(string); ok {
						allowedUsers = append(allowedUsers, userStr)
					}
				}
			}
		}

		for _, user := range allowedUsers {
			if user == userID {
				// Already granted, nothing to update.
				return nil
			}
		}

		updatedUsers := append(allowedUsers, userID)
		return tx.Update(docRef, []firestore.Update{
			{Path: "allowedUsers", Value: updatedUsers},
		})
	})
	if err != nil {
		s.log.Warn().Err(err).Str("organization", organizationID).Msg("failed to update allowed users")
		return err
	}

	return nil
}

func getEmailTemplate(url string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <style>
        body {
            font-family: Arial, sans-serif;
            background-color: #f4f4f4;
            margin: 0;
            padding: 20px;
        }
        .container {
            background-color: #ffffff;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
            box-shadow: 0 0 10px rgba(0,0,0,0.1);
        }
        .button {
            display: block;
            width: 200px;
            height: 50px;
            margin: 20px auto;
            background-color: #007BFF;
            color: #ffffff;
            font-size: 16px;
            text-align: center;
            line-height: 50px;
            text-decoration: none;
            border-radius: 5px;
        }
        .button:hover {
            background-color: #0056b3;
        }
    </style>
</head>
<body>
    <div class="container">
        <h2>Hello,</h2>
        <p>You have been invited to run the scoreboard console. Click the button below to open it:</p>
        <a href="%s" class="button">Open console</a>
        <p>Best regards,<br>The scoreboard team</p>
    </div>
</body>
</html>`, url)
}
