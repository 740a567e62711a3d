package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nsrs_binding/configs"
	"github.com/nsrs_binding/internal/models"
	"github.com/nsrs_binding/internal/repositories"
	"github.com/nsrs_binding/internal/services"
	"github.com/nsrs_binding/pkg/utils"
)

// BindingTaskHandler 封装了批量绑定任务相关的 HTTP 处理逻辑
type BindingTaskHandler struct {
	service services.BindingTaskService
}

// NewBindingTaskHandler 创建一个新的 BindingTaskHandler 实例
func NewBindingTaskHandler(service services.BindingTaskService) *BindingTaskHandler {
	return &BindingTaskHandler{service: service}
}

// DeleteTasksPayload 是批量删除任务请求的结构体
type DeleteTasksPayload struct {
	TaskIDs []int64 `json:"taskIds" binding:"required,min=1"`
}

// SubmitTask godoc
// @Summary 提交批量绑定/解绑任务
// @Description 上传明细文件并创建任务，任务创建后处于 Pending 状态，需显式启动
// @Tags BindingTasks
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "明细文件 (CSV，首行为表头)"
// @Param taskName formData string true "任务名称"
// @Param taskType formData string true "任务类型 (Bind/Unbind)"
// @Success 201 {object} utils.SuccessResponse{data=models.BindingTask} "创建成功的任务"
// @Failure 400 {object} utils.APIErrorResponse "请求参数错误或文件无有效数据行"
// @Failure 500 {object} utils.APIErrorResponse "服务器内部错误"
// @Router /binding-tasks [post]
// @Security BearerAuth
func (h *BindingTaskHandler) SubmitTask(c *gin.Context) {
	taskName := c.PostForm("taskName")
	if taskName == "" {
		utils.RespondValidationError(c, "taskName 不能为空")
		return
	}
	taskType := models.BindingTaskType(c.PostForm("taskType"))
	if taskType != models.TaskTypeBind && taskType != models.TaskTypeUnbind {
		utils.RespondValidationError(c, "taskType 必须是 Bind 或 Unbind")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		utils.RespondValidationError(c, "缺少明细文件: "+err.Error())
		return
	}

	uploadDir := configs.AppConfig.UploadDir
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		utils.RespondInternalServerError(c, "创建上传目录失败", err.Error())
		return
	}
	savedPath := filepath.Join(uploadDir, fmt.Sprintf("%s_%s", uuid.NewString(), filepath.Base(file.Filename)))
	if err := c.SaveUploadedFile(file, savedPath); err != nil {
		utils.RespondInternalServerError(c, "保存上传文件失败", err.Error())
		return
	}

	task, err := h.service.Submit(c.Request.Context(), savedPath, taskName, taskType, operatorUserID(c))
	if err != nil {
		if errors.Is(err, services.ErrNoValidRows) {
			utils.RespondValidationError(c, services.ErrNoValidRows.Error())
			return
		}
		utils.RespondInternalServerError(c, "创建任务失败", err.Error())
		return
	}
	utils.RespondSuccess(c, http.StatusCreated, task, "任务创建成功")
}

// ListTasks godoc
// @Summary 分页查询任务列表
// @Tags BindingTasks
// @Produce json
// @Param page query int false "页码，默认 1"
// @Param pageSize query int false "每页条数，默认 10"
// @Param taskName query string false "任务名称模糊查询"
// @Param status query string false "任务状态"
// @Param taskType query string false "任务类型"
// @Success 200 {object} utils.SuccessResponse "任务列表与分页信息"
// @Router /binding-tasks [get]
// @Security BearerAuth
func (h *BindingTaskHandler) ListTasks(c *gin.Context) {
	page, pageSize := parsePagination(c)
	query := repositories.BindingTaskQuery{
		TaskName: c.Query("taskName"),
		Status:   models.BindingTaskStatus(c.Query("status")),
		TaskType: models.BindingTaskType(c.Query("taskType")),
	}

	tasks, total, err := h.service.ListTasks(c.Request.Context(), query, page, pageSize)
	if err != nil {
		utils.RespondInternalServerError(c, "查询任务列表失败", err.Error())
		return
	}
	utils.RespondSuccess(c, http.StatusOK, gin.H{
		"items":      tasks,
		"pagination": newPaginationInfo(total, page, pageSize),
	}, "")
}

// GetTask godoc
// @Summary 查询单个任务
// @Tags BindingTasks
// @Produce json
// @Param id path int true "任务ID"
// @Success 200 {object} utils.SuccessResponse{data=models.BindingTask}
// @Failure 404 {object} utils.APIErrorResponse "任务不存在"
// @Router /binding-tasks/{id} [get]
// @Security BearerAuth
func (h *BindingTaskHandler) GetTask(c *gin.Context) {
	taskID, ok := parseTaskID(c)
	if !ok {
		return
	}
	task, err := h.service.GetTask(c.Request.Context(), taskID)
	if err != nil {
		if errors.Is(err, services.ErrTaskNotFound) {
			utils.RespondNotFoundError(c, "任务")
			return
		}
		utils.RespondInternalServerError(c, "查询任务失败", err.Error())
		return
	}
	utils.RespondSuccess(c, http.StatusOK, task, "")
}

// ListTaskDetails godoc
// @Summary 分页查询任务明细
// @Tags BindingTasks
// @Produce json
// @Param id path int true "任务ID"
// @Param page query int false "页码，默认 1"
// @Param pageSize query int false "每页条数，默认 10"
// @Success 200 {object} utils.SuccessResponse "明细列表与分页信息"
// @Failure 404 {object} utils.APIErrorResponse "任务不存在"
// @Router /binding-tasks/{id}/details [get]
// @Security BearerAuth
func (h *BindingTaskHandler) ListTaskDetails(c *gin.Context) {
	taskID, ok := parseTaskID(c)
	if !ok {
		return
	}
	page, pageSize := parsePagination(c)

	details, total, err := h.service.ListDetails(c.Request.Context(), taskID, page, pageSize)
	if err != nil {
		if errors.Is(err, services.ErrTaskNotFound) {
			utils.RespondNotFoundError(c, "任务")
			return
		}
		utils.RespondInternalServerError(c, "查询任务明细失败", err.Error())
		return
	}
	utils.RespondSuccess(c, http.StatusOK, gin.H{
		"items":      details,
		"pagination": newPaginationInfo(total, page, pageSize),
	}, "")
}

// StartTask godoc
// @Summary 启动任务
// @Tags BindingTasks
// @Produce json
// @Param id path int true "任务ID"
// @Success 200 {object} utils.SuccessResponse
// @Failure 409 {object} utils.APIErrorResponse "任务状态不允许启动"
// @Router /binding-tasks/{id}/start [post]
// @Security BearerAuth
func (h *BindingTaskHandler) StartTask(c *gin.Context) {
	h.lifecycleAction(c, h.service.Start, "任务已启动")
}

// StopTask godoc
// @Summary 停止任务
// @Description 请求停止 Processing 中的任务，未处理的明细保持 Pending
// @Tags BindingTasks
// @Produce json
// @Param id path int true "任务ID"
// @Success 200 {object} utils.SuccessResponse
// @Failure 409 {object} utils.APIErrorResponse "任务状态不允许停止"
// @Router /binding-tasks/{id}/stop [post]
// @Security BearerAuth
func (h *BindingTaskHandler) StopTask(c *gin.Context) {
	h.lifecycleAction(c, h.service.Stop, "停止请求已下达")
}

// CancelTask godoc
// @Summary 取消任务
// @Tags BindingTasks
// @Produce json
// @Param id path int true "任务ID"
// @Success 200 {object} utils.SuccessResponse
// @Failure 409 {object} utils.APIErrorResponse "任务状态不允许取消"
// @Router /binding-tasks/{id}/cancel [post]
// @Security BearerAuth
func (h *BindingTaskHandler) CancelTask(c *gin.Context) {
	h.lifecycleAction(c, h.service.Cancel, "任务已取消")
}

// RetryTask godoc
// @Summary 重试失败任务
// @Description 仅失败明细会被重新处理，成功明细保持不动
// @Tags BindingTasks
// @Produce json
// @Param id path int true "任务ID"
// @Success 200 {object} utils.SuccessResponse
// @Failure 409 {object} utils.APIErrorResponse "任务状态不允许重试"
// @Router /binding-tasks/{id}/retry [post]
// @Security BearerAuth
func (h *BindingTaskHandler) RetryTask(c *gin.Context) {
	h.lifecycleAction(c, h.service.Retry, "任务已重新启动")
}

// DeleteTasks godoc
// @Summary 批量删除任务
// @Description 删除任务及其全部明细，运行中的任务拒绝删除
// @Tags BindingTasks
// @Accept json
// @Produce json
// @Param payload body DeleteTasksPayload true "要删除的任务ID列表"
// @Success 200 {object} utils.SuccessResponse
// @Failure 409 {object} utils.APIErrorResponse "存在运行中的任务"
// @Router /binding-tasks [delete]
// @Security BearerAuth
func (h *BindingTaskHandler) DeleteTasks(c *gin.Context) {
	var payload DeleteTasksPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		utils.RespondValidationError(c, err.Error())
		return
	}
	if err := h.service.Delete(c.Request.Context(), payload.TaskIDs); err != nil {
		if errors.Is(err, repositories.ErrTaskRunning) {
			utils.RespondConflictError(c, err.Error())
			return
		}
		utils.RespondInternalServerError(c, "删除任务失败", err.Error())
		return
	}
	utils.RespondSuccess(c, http.StatusOK, nil, "任务已删除")
}

// lifecycleAction 统一处理 start/stop/cancel/retry 的路径解析与错误映射
func (h *BindingTaskHandler) lifecycleAction(c *gin.Context, action func(ctx context.Context, taskID int64) error, successMsg string) {
	taskID, ok := parseTaskID(c)
	if !ok {
		return
	}
	if err := action(c.Request.Context(), taskID); err != nil {
		switch {
		case errors.Is(err, services.ErrTaskNotFound):
			utils.RespondNotFoundError(c, "任务")
		case errors.Is(err, services.ErrInvalidTaskStatus),
			errors.Is(err, services.ErrTaskAlreadyRunning),
			errors.Is(err, services.ErrTaskNotRunning):
			utils.RespondConflictError(c, err.Error())
		default:
			utils.RespondInternalServerError(c, "任务操作失败", err.Error())
		}
		return
	}
	utils.RespondSuccess(c, http.StatusOK, nil, successMsg)
}

func parseTaskID(c *gin.Context) (int64, bool) {
	taskID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || taskID <= 0 {
		utils.RespondValidationError(c, "无效的任务ID")
		return 0, false
	}
	return taskID, true
}

func operatorUserID(c *gin.Context) int64 {
	if v, ok := c.Get("userID"); ok {
		if id, ok := v.(uint); ok {
			return int64(id)
		}
	}
	return 0
}

func parsePagination(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("pageSize", "10"))
	if err != nil || pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}
	return page, pageSize
}

func newPaginationInfo(total int64, page, pageSize int) PaginationInfo {
	totalPages := total / int64(pageSize)
	if total%int64(pageSize) != 0 {
		totalPages++
	}
	return PaginationInfo{
		TotalItems:  total,
		TotalPages:  totalPages,
		CurrentPage: page,
		PageSize:    pageSize,
	}
}
