package resend

// AccessRequest asks for a console share link for an organization.
type AccessRequest struct {
	OrganizationID string `json:"organizationId"`
	Email          string `json:"email"`
}
