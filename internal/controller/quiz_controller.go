package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"khoj/internal/dto"
	"khoj/internal/service"
)

type QuizController struct {
	quizService service.QuizService
}

func NewQuizController(quizService service.QuizService) *QuizController {
	return &QuizController{quizService: quizService}
}

func (c *QuizController) RegisterRoutes(api *gin.RouterGroup) {
	quiz := api.Group("/quiz")
	quiz.POST("/start", c.StartQuiz)
	quiz.POST("/submit", c.SubmitQuiz)
	quiz.GET("/:id", c.GetQuiz)
}

// StartQuiz godoc
// @Summary Start a quiz for a chat
// @Description Generates max(1, duration/3) questions on the chat's topic. While a quiz is active for the chat, starting another returns the active one with a conflict status; its quiz_id is authoritative.
// @Tags Quiz
// @Accept json
// @Produce json
// @Param X-Gemini-Api-Key header string false "Per-request Gemini API key override"
// @Param request body dto.StartQuizRequest true "Quiz parameters"
// @Success 200 {object} dto.StartQuizResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid input"
// @Failure 404 {object} dto.ErrorResponse "Chat not found or not owned"
// @Failure 409 {object} dto.StartQuizResponse "An active quiz already exists for this chat"
// @Router /quiz/start [post]
func (c *QuizController) StartQuiz(ctx *gin.Context) {
	var req dto.StartQuizRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request: " + err.Error()})
		return
	}

	resp, err := c.quizService.StartQuiz(ctx.Request.Context(), apiKeyFromRequest(ctx), req)
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

// GetQuiz godoc
// @Summary Get a quiz and its questions
// @Description Questions are returned without their correct answers.
// @Tags Quiz
// @Produce json
// @Param id path int true "Quiz ID"
// @Success 200 {object} dto.QuizDetailResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid quiz ID"
// @Failure 404 {object} dto.ErrorResponse "Quiz not found"
// @Router /quiz/{id} [get]
func (c *QuizController) GetQuiz(ctx *gin.Context) {
	quizID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid quiz ID format"})
		return
	}

	resp, svcErr := c.quizService.GetQuiz(uint(quizID))
	if svcErr != nil {
		respondError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// SubmitQuiz godoc
// @Summary Submit all answers for a quiz
// @Description Scores every question (exact label match for multiple choice, AI judgment for free text; unanswered counts as incorrect) and completes the quiz. A completed quiz rejects resubmission.
// @Tags Quiz
// @Accept json
// @Produce json
// @Param X-Gemini-Api-Key header string false "Per-request Gemini API key override"
// @Param request body dto.SubmitQuizRequest true "Answers keyed by question ID"
// @Success 200 {object} dto.QuizResultResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid input"
// @Failure 404 {object} dto.ErrorResponse "Quiz not found"
// @Failure 409 {object} dto.ErrorResponse "Quiz already submitted"
// @Router /quiz/submit [post]
func (c *QuizController) SubmitQuiz(ctx *gin.Context) {
	var req dto.SubmitQuizRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request: " + err.Error()})
		return
	}

	resp, err := c.quizService.SubmitQuiz(ctx.Request.Context(), apiKeyFromRequest(ctx), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}
