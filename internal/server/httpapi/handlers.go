package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/maildrift/maildrift/internal/common"
	"github.com/maildrift/maildrift/internal/feed"
)

type registerRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"displayName"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error(), ""))
		return
	}
	user, err := s.users.Register(c.Request.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error(), ""))
		return
	}
	pair, err := s.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (s *Server) handleRefresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error(), ""))
		return
	}
	pair, err := s.users.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (s *Server) handleLogout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error(), ""))
		return
	}
	if err := s.users.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleChanges serves the delta feed. since defaults to zero, which is the
// cold start: every live row plus every tombstone.
func (s *Server) handleChanges(c *gin.Context) {
	since := int64(0)
	if raw := c.Query("since"); raw != "" {
		var err error
		since, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || since < 0 {
			c.JSON(http.StatusBadRequest, errorBody("since must be a non-negative integer", ""))
			return
		}
	}

	bundle, err := s.feed.Compile(c.Request.Context(), userID(c), since)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bundle)
}

func (s *Server) handleMutate(c *gin.Context) {
	var action feed.Action
	if err := c.ShouldBindJSON(&action); err != nil {
		c.JSON(http.StatusBadRequest, feed.MutationResponse{Error: err.Error()})
		return
	}

	bundle, err := s.mutations.Apply(c.Request.Context(), userID(c), action)
	if err != nil {
		s.logger.Warn(c.Request.Context(), "mutation rejected",
			"action", string(action.Type), "error", err.Error())
		c.JSON(statusFor(err), feed.MutationResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, feed.MutationResponse{
		Success: &feed.SuccessBody{Message: successMessage(action.Type)},
		Sync:    bundle,
	})
}

func successMessage(t feed.ActionType) string {
	switch t {
	case feed.ActionAliasAdd:
		return "Alias added"
	case feed.ActionAliasDelete:
		return "Alias deleted"
	case feed.ActionAliasSetDefault:
		return "Default alias updated"
	case feed.ActionTempAliasCreate:
		return "Temporary alias created"
	case feed.ActionTempAliasDelete:
		return "Temporary alias deleted"
	case feed.ActionDomainAdd:
		return "Domain added"
	case feed.ActionDomainDelete:
		return "Domain deleted"
	case feed.ActionCategorySave:
		return "Category saved"
	case feed.ActionCategoryDelete:
		return "Category deleted"
	case feed.ActionDraftSave:
		return "Draft saved"
	case feed.ActionDraftDelete:
		return "Draft deleted"
	case feed.ActionDraftSend:
		return "Email sent"
	case feed.ActionEmailSetFlags:
		return "Email updated"
	case feed.ActionEmailMove:
		return "Email moved"
	case feed.ActionEmailDelete:
		return "Email deleted"
	case feed.ActionNotificationMarkRead:
		return "Notification marked as read"
	case feed.ActionMailboxRename:
		return "Mailbox renamed"
	default:
		return "Done"
	}
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, common.ErrUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrRefreshTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), "request failed", "error", err.Error())
		// Internal detail stays in the log.
		c.JSON(status, errorBody("internal error", ""))
		return
	}
	code := ""
	if errors.Is(err, common.ErrTokenExpired) {
		code = codeTokenExpired
	}
	c.JSON(status, errorBody(err.Error(), code))
}
