package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"polyterm/store"
)

// --- watchlists ---

func (s *Server) handleListWatchlists(c *gin.Context) {
	list, err := s.store.Watchlist().List(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list watchlists", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleCreateWatchlist(c *gin.Context) {
	var req struct {
		Name      string `json:"name" binding:"required"`
		IsDefault bool   `json:"is_default"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	w := &store.Watchlist{
		ID:        uuid.New().String(),
		UserID:    c.GetString("user_id"),
		Name:      req.Name,
		IsDefault: req.IsDefault,
	}
	if err := s.store.Watchlist().Create(w); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create watchlist", "details": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, w)
}

func (s *Server) handleGetWatchlist(c *gin.Context) {
	w, err := s.store.Watchlist().Get(c.GetString("user_id"), c.Param("id"))
	if err != nil {
		notFoundOrError(c, err, "watchlist")
		return
	}
	c.JSON(http.StatusOK, w)
}

func (s *Server) handleRenameWatchlist(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.store.Watchlist().Rename(c.GetString("user_id"), c.Param("id"), req.Name); err != nil {
		notFoundOrError(c, err, "watchlist")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Watchlist renamed"})
}

func (s *Server) handleDeleteWatchlist(c *gin.Context) {
	if err := s.store.Watchlist().Delete(c.GetString("user_id"), c.Param("id")); err != nil {
		notFoundOrError(c, err, "watchlist")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Watchlist deleted"})
}

func (s *Server) handleAddWatchlistItem(c *gin.Context) {
	userID := c.GetString("user_id")
	watchlistID := c.Param("id")

	// ownership check
	if _, err := s.store.Watchlist().Get(userID, watchlistID); err != nil {
		notFoundOrError(c, err, "watchlist")
		return
	}

	var req struct {
		MarketID string `json:"market_id" binding:"required"`
		TokenID  string `json:"token_id"`
		Note     string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item := &store.WatchlistItem{
		WatchlistID: watchlistID,
		MarketID:    req.MarketID,
		TokenID:     req.TokenID,
		Note:        req.Note,
	}
	if err := s.store.Watchlist().AddItem(item); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add item", "details": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (s *Server) handleRemoveWatchlistItem(c *gin.Context) {
	userID := c.GetString("user_id")
	watchlistID := c.Param("id")

	if _, err := s.store.Watchlist().Get(userID, watchlistID); err != nil {
		notFoundOrError(c, err, "watchlist")
		return
	}
	if err := s.store.Watchlist().RemoveItem(watchlistID, c.Param("marketId")); err != nil {
		notFoundOrError(c, err, "watchlist item")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item removed"})
}

func (s *Server) handleReorderWatchlist(c *gin.Context) {
	userID := c.GetString("user_id")
	watchlistID := c.Param("id")

	if _, err := s.store.Watchlist().Get(userID, watchlistID); err != nil {
		notFoundOrError(c, err, "watchlist")
		return
	}

	var req struct {
		MarketIDs []string `json:"market_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.store.Watchlist().Reorder(watchlistID, req.MarketIDs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reorder", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Watchlist reordered"})
}

// --- workspaces ---

func (s *Server) handleListWorkspaces(c *gin.Context) {
	list, err := s.store.Workspace().List(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list workspaces", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleCreateWorkspace(c *gin.Context) {
	var req struct {
		Name   string `json:"name" binding:"required"`
		Layout string `json:"layout"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Layout == "" {
		req.Layout = "{}"
	}
	w := &store.Workspace{
		ID:     uuid.New().String(),
		UserID: c.GetString("user_id"),
		Name:   req.Name,
		Layout: req.Layout,
	}
	if err := s.store.Workspace().Create(w); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create workspace", "details": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, w)
}

func (s *Server) handleGetWorkspace(c *gin.Context) {
	w, err := s.store.Workspace().Get(c.GetString("user_id"), c.Param("id"))
	if err != nil {
		notFoundOrError(c, err, "workspace")
		return
	}
	c.JSON(http.StatusOK, w)
}

func (s *Server) handleRenameWorkspace(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.store.Workspace().Rename(c.GetString("user_id"), c.Param("id"), req.Name); err != nil {
		notFoundOrError(c, err, "workspace")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Workspace renamed"})
}

func (s *Server) handleDeleteWorkspace(c *gin.Context) {
	if err := s.store.Workspace().Delete(c.GetString("user_id"), c.Param("id")); err != nil {
		notFoundOrError(c, err, "workspace")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Workspace deleted"})
}

// handleUpdateWorkspaceLayout overwrites the card grid. The client debounces
// drag events, so last write wins is fine here.
func (s *Server) handleUpdateWorkspaceLayout(c *gin.Context) {
	var req struct {
		Layout string `json:"layout" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.store.Workspace().UpdateLayout(c.GetString("user_id"), c.Param("id"), req.Layout); err != nil {
		notFoundOrError(c, err, "workspace")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Layout saved"})
}

func (s *Server) handleActivateWorkspace(c *gin.Context) {
	if err := s.store.Workspace().Activate(c.GetString("user_id"), c.Param("id")); err != nil {
		notFoundOrError(c, err, "workspace")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Workspace activated"})
}

// --- layout templates ---

func (s *Server) handleListTemplates(c *gin.Context) {
	list, err := s.store.Template().List(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list templates", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleCreateTemplate(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		Layout      string `json:"layout" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tmpl := &store.Template{
		ID:          uuid.New().String(),
		UserID:      c.GetString("user_id"),
		Name:        req.Name,
		Description: req.Description,
		Layout:      req.Layout,
	}
	if err := s.store.Template().Create(tmpl); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create template", "details": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, tmpl)
}

func (s *Server) handleGetTemplate(c *gin.Context) {
	tmpl, err := s.store.Template().Get(c.GetString("user_id"), c.Param("id"))
	if err != nil {
		notFoundOrError(c, err, "template")
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

func (s *Server) handleDeleteTemplate(c *gin.Context) {
	if err := s.store.Template().Delete(c.GetString("user_id"), c.Param("id")); err != nil {
		notFoundOrError(c, err, "template")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Template deleted"})
}

// handleApplyTemplate creates a new workspace from a template's layout
func (s *Server) handleApplyTemplate(c *gin.Context) {
	userID := c.GetString("user_id")

	tmpl, err := s.store.Template().Get(userID, c.Param("id"))
	if err != nil {
		notFoundOrError(c, err, "template")
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	// body optional; default the workspace name to the template's
	_ = c.ShouldBindJSON(&req)
	if req.Name == "" {
		req.Name = tmpl.Name
	}

	w := &store.Workspace{
		ID:     uuid.New().String(),
		UserID: userID,
		Name:   req.Name,
		Layout: tmpl.Layout,
	}
	if err := s.store.Workspace().Create(w); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create workspace", "details": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, w)
}

// --- themes ---

func (s *Server) handleListThemes(c *gin.Context) {
	userID := c.GetString("user_id")
	list, err := s.store.Theme().List(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list themes", "details": err.Error()})
		return
	}
	activeID, err := s.store.Theme().ActiveThemeID(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve active theme", "details": err.Error()})
		return
	}
	for _, th := range list {
		th.IsActive = th.ID == activeID
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleCreateTheme(c *gin.Context) {
	var req struct {
		Name   string `json:"name" binding:"required"`
		Colors string `json:"colors" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	th := &store.Theme{
		ID:     uuid.New().String(),
		UserID: c.GetString("user_id"),
		Name:   req.Name,
		Colors: req.Colors,
	}
	if err := s.store.Theme().Create(th); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create theme", "details": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, th)
}

func (s *Server) handleUpdateTheme(c *gin.Context) {
	var req struct {
		Name   string `json:"name" binding:"required"`
		Colors string `json:"colors" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	th := &store.Theme{
		ID:     c.Param("id"),
		UserID: c.GetString("user_id"),
		Name:   req.Name,
		Colors: req.Colors,
	}
	if err := s.store.Theme().Update(th); err != nil {
		notFoundOrError(c, err, "theme")
		return
	}
	c.JSON(http.StatusOK, th)
}

func (s *Server) handleDeleteTheme(c *gin.Context) {
	if err := s.store.Theme().Delete(c.GetString("user_id"), c.Param("id")); err != nil {
		notFoundOrError(c, err, "theme")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Theme deleted"})
}

func (s *Server) handleActivateTheme(c *gin.Context) {
	if err := s.store.Theme().Activate(c.GetString("user_id"), c.Param("id")); err != nil {
		notFoundOrError(c, err, "theme")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Theme activated"})
}
