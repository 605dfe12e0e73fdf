package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"khoj/internal/dto"
	"khoj/internal/service"
)

type ChatController struct {
	chatService service.ChatService
}

func NewChatController(chatService service.ChatService) *ChatController {
	return &ChatController{chatService: chatService}
}

func (c *ChatController) RegisterRoutes(api *gin.RouterGroup) {
	chat := api.Group("/chat")
	chat.POST("/start", c.StartChat)
	chat.POST("/send", c.SendMessage)
	// More specific route must come before the general one.
	chat.GET("/user/:user_id", c.GetUserChats)
	chat.DELETE("/:id", c.DeleteChat)
	chat.GET("/:id", c.GetChatHistory)
}

// StartChat godoc
// @Summary Start (or resume) a chat on a topic
// @Description Creates the chat bound to (user, topic). A repeated start for the same normalized topic returns the existing chat with a conflict status; the returned chat_id is authoritative either way.
// @Tags Chat
// @Accept json
// @Produce json
// @Param request body dto.StartChatRequest true "User and topic"
// @Success 200 {object} dto.StartChatResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid input"
// @Failure 409 {object} dto.StartChatResponse "Chat already exists for this topic"
// @Router /chat/start [post]
func (c *ChatController) StartChat(ctx *gin.Context) {
	var req dto.StartChatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request: " + err.Error()})
		return
	}

	resp, err := c.chatService.StartChat(req.UserID, req.Topic)
	if err != nil {
		respondError(ctx, err)
		return
	}
	if resp.Existing {
		ctx.JSON(http.StatusConflict, resp)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// SendMessage godoc
// @Summary Send a message and get the tutor's reply
// @Description Runs the topic guard, generates a reply, and stores the user/bot pair atomically. Off-topic messages are rejected without side effects.
// @Tags Chat
// @Accept json
// @Produce json
// @Param X-Gemini-Api-Key header string false "Per-request Gemini API key override"
// @Param request body dto.SendMessageRequest true "Chat message"
// @Success 200 {object} dto.SendMessageResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid input"
// @Failure 404 {object} dto.ErrorResponse "Chat not found or not owned"
// @Failure 409 {object} dto.ErrorResponse "Message rejected as off-topic; required_topic carries the bound topic"
// @Failure 502 {object} dto.ErrorResponse "AI provider unavailable"
// @Router /chat/send [post]
func (c *ChatController) SendMessage(ctx *gin.Context) {
	var req dto.SendMessageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request: " + err.Error()})
		return
	}

	resp, err := c.chatService.SendMessage(ctx.Request.Context(), apiKeyFromRequest(ctx), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// GetUserChats godoc
// @Summary List a user's chats
// @Description Chats sorted by most recent activity first. An empty list is a valid response.
// @Tags Chat
// @Produce json
// @Param user_id path int true "User ID"
// @Success 200 {array} dto.ChatSummaryResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid user ID"
// @Router /chat/user/{user_id} [get]
func (c *ChatController) GetUserChats(ctx *gin.Context) {
	userID, ok := parseIntParam(ctx, "user_id")
	if !ok {
		return
	}

	chats, err := c.chatService.ListChats(userID)
	if err != nil {
		log.Error().Err(err).Int("user_id", userID).Msg("GetUserChats: service error")
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, chats)
}

// GetChatHistory godoc
// @Summary Get a chat's full message history
// @Description Messages ordered oldest first.
// @Tags Chat
// @Produce json
// @Param id path string true "Chat ID"
// @Success 200 {array} dto.MessageResponse
// @Failure 404 {object} dto.ErrorResponse "Chat not found"
// @Router /chat/{id} [get]
func (c *ChatController) GetChatHistory(ctx *gin.Context) {
	history, err := c.chatService.GetHistory(ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, history)
}

// DeleteChat godoc
// @Summary Delete a chat
// @Description Deletes the chat and everything it owns: messages, quizzes, questions, schedules. Ownership is checked against user_id in the body.
// @Tags Chat
// @Accept json
// @Produce json
// @Param id path string true "Chat ID"
// @Param request body dto.DeleteChatRequest true "Owning user"
// @Success 200 {object} map[string]string
// @Failure 404 {object} dto.ErrorResponse "Chat not found or not owned"
// @Router /chat/{id} [delete]
func (c *ChatController) DeleteChat(ctx *gin.Context) {
	var req dto.DeleteChatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request: " + err.Error()})
		return
	}

	if err := c.chatService.DeleteChat(req.UserID, ctx.Param("id")); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Chat deleted successfully"})
}
