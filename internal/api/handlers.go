package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"ludo-table-bot/internal/repository"
	"ludo-table-bot/internal/service"
	"ludo-table-bot/internal/tablemsg"
)

// optionLabels maps the mini-app's checkbox keys to the display names
// that appear in the table message. Unknown keys are passed through as-is
// so a frontend rollout never silently drops a flag.
var optionLabels = map[string]string{
	"freshId":     "Fresh Id",
	"codeAapDoge": "Code aap doge",
	"noIphone":    "No iPhone",
	"noKingPass":  "No king pass",
	"autoLoss":    "Auto loss",
}

type createTableRequest struct {
	TelegramID int64    `json:"telegram_id" binding:"required"`
	Username   string   `json:"username"`
	FirstName  string   `json:"first_name"`
	LastName   string   `json:"last_name"`
	Amount     int64    `json:"amount"`
	GameType   string   `json:"game_type"`
	GamePlus   int64    `json:"game_plus"`
	Options    []string `json:"options"`
}

// handleCreateTable opens a table on behalf of the mini-app user.
// Business rejections come back as 200 with success=false so the web view
// can show them inline; only unexpected failures produce a 5xx.
func (s *Server) handleCreateTable(c *gin.Context) {
	var req createTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	ctx := c.Request.Context()

	user, err := s.ledger.EnsureUser(ctx, req.TelegramID, req.Username, req.FirstName, req.LastName)
	if err != nil {
		log.Error().Err(err).Int64("telegram_id", req.TelegramID).Msg("Failed to register mini-app user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if req.Amount <= 0 {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "amount must be a positive whole number"})
		return
	}
	// The stake is only escrowed at match time, but an obviously unfunded
	// table would just clutter the group.
	if user.Balance < req.Amount {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "insufficient balance for this stake"})
		return
	}

	gameType := req.GameType
	if gameType == "" {
		gameType = "Full"
	}
	gameType = tablemsg.ComposeGameType(gameType, req.GamePlus)

	options := make([]string, 0, len(req.Options))
	for _, key := range req.Options {
		if label, ok := optionLabels[key]; ok {
			options = append(options, label)
		} else {
			options = append(options, key)
		}
	}

	table, err := s.lifecycle.CreateTable(ctx, user.TelegramID, req.Amount, gameType, options)
	if err != nil {
		if errors.Is(err, service.ErrInvalidAmount) {
			c.JSON(http.StatusOK, gin.H{"success": false, "error": "amount must be a positive whole number"})
			return
		}
		log.Error().Err(err).Int64("telegram_id", req.TelegramID).Msg("Failed to create table")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create table"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"table_id":     table.ID,
		"table_number": table.TableNumber,
	})
}

// handleUserBalance returns the balance shown in the mini-app header.
func (s *Server) handleUserBalance(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	user, err := s.ledger.GetUser(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		log.Error().Err(err).Int64("telegram_id", id).Msg("Failed to load balance")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"telegram_id": user.TelegramID,
		"balance":     user.Balance,
	})
}

type initializeRequest struct {
	TelegramID int64  `json:"telegram_id" binding:"required"`
	Username   string `json:"username"`
}

// handleInitialize bootstraps the first admin. One-shot: refused with 400
// once any admin exists.
func (s *Server) handleInitialize(c *gin.Context) {
	var req initializeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	admin, err := s.ledger.BootstrapAdmin(c.Request.Context(), req.TelegramID, req.Username)
	if err != nil {
		if errors.Is(err, service.ErrAdminExists) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "an admin already exists"})
			return
		}
		log.Error().Err(err).Int64("telegram_id", req.TelegramID).Msg("Failed to bootstrap admin")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "admin_id": admin.TelegramID})
}

type pinButtonRequest struct {
	AdminID int64 `json:"admin_id" binding:"required"`
}

// handlePinButton posts the mini-app launch button to the group chat.
func (s *Server) handlePinButton(c *gin.Context) {
	var req pinButtonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	ctx := c.Request.Context()

	isAdmin, err := s.ledger.IsAdmin(ctx, req.AdminID)
	if err != nil {
		log.Error().Err(err).Int64("admin_id", req.AdminID).Msg("Admin check failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if !isAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "not an admin"})
		return
	}
	if s.miniAppURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no mini-app URL configured"})
		return
	}

	text := "🎲 <b>Ludo Tables</b>\nTap below to open a new table."
	messageID, err := s.gateway.SendGroupWebAppButton(ctx, text, "Open Table 🎲", s.miniAppURL)
	if err != nil {
		log.Error().Err(err).Msg("Failed to post pin button")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to post button"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message_id": messageID})
}
