package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nvbf/scoreboard-sync/pkg/sharelink"
	resend "github.com/nvbf/scoreboard-sync/repos/resend"
)

// Router is the interface for a router.
type Router interface {
	GET(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	POST(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	Use(middleware ...gin.HandlerFunc) gin.IRoutes
	Group(relativePath string, handlers ...gin.HandlerFunc) *gin.RouterGroup
}

// Admin is the interface for the admin service.
type Admin interface {
	EnsureOrganization(c *gin.Context, organizationID string) error
	ClaimAccess(c *gin.Context, request resend.AccessRequest) error
	AddConsoleAccess(c *gin.Context, link sharelink.Link) error
}

// HTTPOptions contains all the options needed for the HTTP handler.
type HTTPOptions struct {

	// The service we provides the HTTP transport for.
	Service Admin

	// The router instance to configure the HTTP routes.
	Router Router

	Logger zerolog.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(opts HTTPOptions) {
	r := opts.Router
	h := &httpHandler{opts}
	r.POST("/claim", h.claimHandler)
	r.GET("/access/:access_code", h.accessHandler)
	r.POST("/org/:org_id", h.ensureOrganizationHandler)
}

type httpHandler struct {
	HTTPOptions
}

func (s *httpHandler) claimHandler(c *gin.Context) {
	var request resend.AccessRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		c.Abort()
		return
	}

	if err := s.Service.ClaimAccess(c, request); err != nil {
		s.Logger.Warn().Err(err).Msg("could not claim console access")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result":       "Console link sent",
		"organization": request.OrganizationID,
		"email":        request.Email,
	})
}

func (s *httpHandler) accessHandler(c *gin.Context) {
	code := c.Param("access_code")
	link, err := sharelink.Decode(code)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("failed to decode share link")
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a valid share link"})
		c.Abort()
		return
	}

	if err := s.Service.AddConsoleAccess(c, link); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a valid share link"})
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"organization": link.OrganizationID,
		"relayUrl":     link.RelayURL,
	})
}

func (s *httpHandler) ensureOrganizationHandler(c *gin.Context) {
	organizationID := c.Param("org_id")

	if err := s.Service.EnsureOrganization(c, organizationID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, gin.H{"organization": organizationID})
}
