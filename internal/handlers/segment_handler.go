package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nsrs_binding/internal/services"
	"github.com/nsrs_binding/pkg/utils"
)

// SegmentHandler 封装了号段统计相关的 HTTP 处理逻辑
type SegmentHandler struct {
	service services.SegmentService
}

// NewSegmentHandler 创建一个新的 SegmentHandler 实例
func NewSegmentHandler(service services.SegmentService) *SegmentHandler {
	return &SegmentHandler{service: service}
}

// ListSegments godoc
// @Summary 分页查询号段列表
// @Tags Segments
// @Produce json
// @Param page query int false "页码，默认 1"
// @Param pageSize query int false "每页条数，默认 10"
// @Success 200 {object} utils.SuccessResponse "号段列表与分页信息"
// @Router /segments [get]
// @Security BearerAuth
func (h *SegmentHandler) ListSegments(c *gin.Context) {
	page, pageSize := parsePagination(c)
	segments, total, err := h.service.ListSegments(c.Request.Context(), page, pageSize)
	if err != nil {
		utils.RespondInternalServerError(c, "查询号段列表失败", err.Error())
		return
	}
	utils.RespondSuccess(c, http.StatusOK, gin.H{
		"items":      segments,
		"pagination": newPaginationInfo(total, page, pageSize),
	}, "")
}

// ResetStatistics godoc
// @Summary 重算号段统计
// @Description 按号码资源表全量重算该号段的各状态计数器，用于修正累积偏差
// @Tags Segments
// @Produce json
// @Param id path int true "号段ID"
// @Success 200 {object} utils.SuccessResponse{data=models.NumberSegment} "重算后的号段"
// @Failure 404 {object} utils.APIErrorResponse "号段不存在"
// @Router /segments/{id}/reset-statistics [post]
// @Security BearerAuth
func (h *SegmentHandler) ResetStatistics(c *gin.Context) {
	segmentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || segmentID <= 0 {
		utils.RespondValidationError(c, "无效的号段ID")
		return
	}

	segment, err := h.service.ResetStatistics(c.Request.Context(), segmentID)
	if err != nil {
		if errors.Is(err, services.ErrSegmentNotFound) {
			utils.RespondNotFoundError(c, "号段")
			return
		}
		utils.RespondInternalServerError(c, "重算号段统计失败", err.Error())
		return
	}
	utils.RespondSuccess(c, http.StatusOK, segment, "号段统计已重算")
}
