package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"polyterm/store"
)

func (s *Server) handleListTeams(c *gin.Context) {
	list, err := s.store.Team().ListForUser(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list teams", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleCreateTeam(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	teamID := uuid.New().String()
	if err := s.store.Team().Create(teamID, req.Name, c.GetString("user_id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create team", "details": err.Error()})
		return
	}
	team, err := s.store.Team().Get(c.GetString("user_id"), teamID)
	if err != nil {
		notFoundOrError(c, err, "team")
		return
	}
	c.JSON(http.StatusCreated, team)
}

func (s *Server) handleGetTeam(c *gin.Context) {
	team, err := s.store.Team().Get(c.GetString("user_id"), c.Param("id"))
	if err != nil {
		notFoundOrError(c, err, "team")
		return
	}
	c.JSON(http.StatusOK, team)
}

// requireTeamRole checks the caller's membership and that their role is one
// of the allowed ones. Non-members get a 404 so team existence stays hidden.
func (s *Server) requireTeamRole(c *gin.Context, teamID string, allowed ...string) bool {
	role, err := s.store.Team().MemberRole(teamID, c.GetString("user_id"))
	if err != nil {
		notFoundOrError(c, err, "team")
		return false
	}
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient team role"})
	return false
}

func (s *Server) handleRenameTeam(c *gin.Context) {
	teamID := c.Param("id")
	if !s.requireTeamRole(c, teamID, store.RoleOwner, store.RoleAdmin) {
		return
	}
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.store.Team().Rename(teamID, req.Name); err != nil {
		notFoundOrError(c, err, "team")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Team renamed"})
}

func (s *Server) handleDeleteTeam(c *gin.Context) {
	teamID := c.Param("id")
	if !s.requireTeamRole(c, teamID, store.RoleOwner) {
		return
	}
	if err := s.store.Team().Delete(teamID); err != nil {
		notFoundOrError(c, err, "team")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Team deleted"})
}

func (s *Server) handleAddTeamMember(c *gin.Context) {
	teamID := c.Param("id")
	if !s.requireTeamRole(c, teamID, store.RoleOwner, store.RoleAdmin) {
		return
	}
	var req struct {
		UserID string `json:"user_id" binding:"required"`
		Role   string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Role == "" {
		req.Role = store.RoleMember
	}
	if _, err := s.store.User().GetByID(req.UserID); err != nil {
		notFoundOrError(c, err, "user")
		return
	}
	if err := s.store.Team().AddMember(teamID, req.UserID, req.Role); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Member added"})
}

func (s *Server) handleUpdateTeamMember(c *gin.Context) {
	teamID := c.Param("id")
	if !s.requireTeamRole(c, teamID, store.RoleOwner, store.RoleAdmin) {
		return
	}
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.store.Team().UpdateMemberRole(teamID, c.Param("userId"), req.Role); err != nil {
		notFoundOrError(c, err, "team member")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Role updated"})
}

func (s *Server) handleRemoveTeamMember(c *gin.Context) {
	teamID := c.Param("id")
	if !s.requireTeamRole(c, teamID, store.RoleOwner, store.RoleAdmin) {
		return
	}
	if err := s.store.Team().RemoveMember(teamID, c.Param("userId")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Member removed"})
}

func (s *Server) handleTransferOwnership(c *gin.Context) {
	teamID := c.Param("id")
	var req struct {
		ToUserID string `json:"to_user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.store.Team().TransferOwnership(teamID, c.GetString("user_id"), req.ToUserID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Ownership transferred"})
}

// handleLeaveTeam removes the caller from the team. The owner is refused
// until they hand ownership to someone else.
func (s *Server) handleLeaveTeam(c *gin.Context) {
	if err := s.store.Team().RemoveMember(c.Param("id"), c.GetString("user_id")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Left team"})
}

// --- market comments ---

func (s *Server) handleListComments(c *gin.Context) {
	marketID := c.Query("market_id")
	if marketID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "market_id query parameter is required"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	list, err := s.store.Comment().ListByMarket(marketID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list comments", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleCreateComment(c *gin.Context) {
	var req struct {
		MarketID string `json:"market_id" binding:"required"`
		ParentID string `json:"parent_id"`
		Body     string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	comment := &store.Comment{
		ID:       uuid.New().String(),
		UserID:   c.GetString("user_id"),
		MarketID: req.MarketID,
		ParentID: req.ParentID,
		Body:     req.Body,
	}
	if err := s.store.Comment().Create(comment); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create comment", "details": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (s *Server) handleDeleteComment(c *gin.Context) {
	if err := s.store.Comment().Delete(c.GetString("user_id"), c.Param("id")); err != nil {
		notFoundOrError(c, err, "comment")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted"})
}
