package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"khoj/internal/dto"
	"khoj/internal/service"
)

type ScheduleController struct {
	scheduleService service.ScheduleService
}

func NewScheduleController(scheduleService service.ScheduleService) *ScheduleController {
	return &ScheduleController{scheduleService: scheduleService}
}

func (c *ScheduleController) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/schedule", c.CreateSchedule)
	schedule := api.Group("/schedule")
	schedule.GET("/user/:user_id", c.GetUserSchedules)
	schedule.GET("/due", c.GetDueSchedules)
	schedule.POST("/trigger", c.TriggerReminder)
	schedule.DELETE("/:id", c.CancelSchedule)
}

// CreateSchedule godoc
// @Summary Create a quiz reminder schedule for a chat
// @Description Validates the recurrence rule (once/daily/weekly) and stores it with its next occurrence. Execution belongs to the external scheduler.
// @Tags Schedule
// @Accept json
// @Produce json
// @Param request body dto.CreateScheduleRequest true "Reminder rule"
// @Success 201 {object} dto.ScheduleResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid rule"
// @Failure 404 {object} dto.ErrorResponse "Chat not found or not owned"
// @Router /schedule [post]
func (c *ScheduleController) CreateSchedule(ctx *gin.Context) {
	var req dto.CreateScheduleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request: " + err.Error()})
		return
	}

	resp, err := c.scheduleService.CreateSchedule(req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// GetUserSchedules godoc
// @Summary List a user's active schedules
// @Tags Schedule
// @Produce json
// @Param user_id path int true "User ID"
// @Success 200 {array} dto.ScheduleSummaryResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid user ID"
// @Router /schedule/user/{user_id} [get]
func (c *ScheduleController) GetUserSchedules(ctx *gin.Context) {
	userID, ok := parseIntParam(ctx, "user_id")
	if !ok {
		return
	}

	schedules, err := c.scheduleService.ListUserSchedules(userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, schedules)
}

// GetDueSchedules godoc
// @Summary List schedules due within the last hour
// @Description Polling endpoint for the external scheduler.
// @Tags Schedule
// @Produce json
// @Success 200 {array} dto.ScheduleSummaryResponse
// @Router /schedule/due [get]
func (c *ScheduleController) GetDueSchedules(ctx *gin.Context) {
	schedules, err := c.scheduleService.DueSchedules()
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, schedules)
}

// TriggerReminder godoc
// @Summary Fire a reminder
// @Description Posts the reminder message into the chat and advances (or deactivates) the schedule. Called by the external scheduler when a rule is due.
// @Tags Schedule
// @Accept json
// @Produce json
// @Param request body dto.TriggerReminderRequest true "Schedule to fire"
// @Success 200 {object} dto.ScheduleSummaryResponse
// @Failure 404 {object} dto.ErrorResponse "Schedule not found or inactive"
// @Router /schedule/trigger [post]
func (c *ScheduleController) TriggerReminder(ctx *gin.Context) {
	var req dto.TriggerReminderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request: " + err.Error()})
		return
	}

	resp, err := c.scheduleService.TriggerReminder(req.ScheduleID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// CancelSchedule godoc
// @Summary Cancel a schedule
// @Tags Schedule
// @Produce json
// @Param id path int true "Schedule ID"
// @Param user_id query int true "Owning user"
// @Success 200 {object} map[string]string
// @Failure 404 {object} dto.ErrorResponse "Schedule not found or not owned"
// @Router /schedule/{id} [delete]
func (c *ScheduleController) CancelSchedule(ctx *gin.Context) {
	scheduleID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid schedule ID format"})
		return
	}
	userID, err := strconv.Atoi(ctx.Query("user_id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "user_id query parameter required"})
		return
	}

	if svcErr := c.scheduleService.CancelSchedule(userID, uint(scheduleID)); svcErr != nil {
		respondError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Schedule cancelled successfully"})
}
