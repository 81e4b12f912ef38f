package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"medflow-web/internal/apiclient"
	"medflow-web/internal/config"
	"medflow-web/internal/middleware"
	"medflow-web/internal/utils"
	"medflow-web/internal/workflow"
)

// RespondError writes the response for an error returned by a view or the
// session manager. Authorization failures end the browser session: the
// cookie is cleared and the browser is sent to the login screen.
func RespondError(c *gin.Context, cfg *config.Config, err error) {
	_ = c.Error(err)

	var (
		verr       *utils.ValidationError
		authErr    *utils.AuthError
		transition *workflow.InvalidStateTransition
		netErr     *utils.NetworkError
	)
	switch {
	case errors.As(err, &verr):
		utils.UnprocessableEntity(c, verr)
	case errors.As(err, &authErr), errors.Is(err, utils.ErrSessionClosed):
		middleware.ClearSessionCookie(c, cfg)
		c.Redirect(http.StatusSeeOther, middleware.LoginPath)
	case errors.As(err, &transition):
		utils.Conflict(c, transition.Error())
	case errors.Is(err, utils.ErrPatientNotQueued):
		utils.NotFound(c, "Patient is no longer in this queue")
	case errors.Is(err, utils.ErrSubmissionInProgress):
		utils.Conflict(c, err.Error())
	case errors.As(err, &netErr):
		utils.BadGateway(c, "The patient service is unreachable. Please try again.")
	case apiclient.IsUnavailable(err):
		utils.BadGateway(c, err.Error())
	default:
		utils.InternalServerError(c, err.Error())
	}
	c.Abort()
}
