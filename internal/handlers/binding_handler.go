package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nsrs_binding/internal/models"
	"github.com/nsrs_binding/internal/repositories"
	"github.com/nsrs_binding/internal/services"
	"github.com/nsrs_binding/pkg/utils"
)

// BindingHandler 封装了号码IMSI绑定关系相关的 HTTP 处理逻辑
type BindingHandler struct {
	service services.BindingService
}

// NewBindingHandler 创建一个新的 BindingHandler 实例
func NewBindingHandler(service services.BindingService) *BindingHandler {
	return &BindingHandler{service: service}
}

// BindPayload 是单笔绑定请求的结构体
type BindPayload struct {
	Number  string `json:"number" binding:"required"`
	Imsi    string `json:"imsi" binding:"required"`
	Iccid   string `json:"iccid"`
	OrderID *int64 `json:"orderId"`
	Remark  string `json:"remark"`
}

// UnbindPayload 是按号码解绑请求的结构体
type UnbindPayload struct {
	Number string `json:"number" binding:"required"`
	Remark string `json:"remark"`
}

// Bind godoc
// @Summary 建立号码与IMSI的绑定关系
// @Tags Bindings
// @Accept json
// @Produce json
// @Param payload body BindPayload true "绑定请求"
// @Success 201 {object} utils.SuccessResponse{data=models.NumberImsiBinding} "创建成功的绑定关系"
// @Failure 400 {object} utils.APIErrorResponse "请求参数错误"
// @Failure 404 {object} utils.APIErrorResponse "号码或IMSI资源不存在"
// @Failure 409 {object} utils.APIErrorResponse "号码或ICCID已被绑定"
// @Router /bindings [post]
// @Security BearerAuth
func (h *BindingHandler) Bind(c *gin.Context) {
	var payload BindPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		utils.RespondValidationError(c, err.Error())
		return
	}
	if err := utils.ValidatePhoneNumber(payload.Number); err != nil {
		utils.RespondValidationError(c, err.Error())
		return
	}

	binding, err := h.service.Bind(c.Request.Context(), services.BindRequest{
		Number:         payload.Number,
		Imsi:           payload.Imsi,
		Iccid:          payload.Iccid,
		OrderID:        payload.OrderID,
		BindingType:    models.BindingTypeNormal,
		OperatorUserID: operatorUserID(c),
		Remark:         payload.Remark,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNumberAlreadyBound), errors.Is(err, services.ErrIccidAlreadyBound):
			utils.RespondConflictError(c, err.Error())
		case errors.Is(err, services.ErrNumberResourceNotFound), errors.Is(err, services.ErrImsiResourceNotFound):
			utils.RespondAPIError(c, http.StatusNotFound, err.Error(), nil)
		default:
			utils.RespondInternalServerError(c, "绑定失败", err.Error())
		}
		return
	}
	utils.RespondSuccess(c, http.StatusCreated, binding, "绑定成功")
}

// UnbindByNumber godoc
// @Summary 按号码解除当前有效绑定
// @Tags Bindings
// @Accept json
// @Produce json
// @Param payload body UnbindPayload true "解绑请求"
// @Success 200 {object} utils.SuccessResponse
// @Failure 404 {object} utils.APIErrorResponse "号码不存在有效绑定"
// @Router /bindings/unbind-by-number [post]
// @Security BearerAuth
func (h *BindingHandler) UnbindByNumber(c *gin.Context) {
	var payload UnbindPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		utils.RespondValidationError(c, err.Error())
		return
	}

	if err := h.service.UnbindByNumber(c.Request.Context(), payload.Number, operatorUserID(c), payload.Remark); err != nil {
		if errors.Is(err, services.ErrBindingNotFound) {
			utils.RespondNotFoundError(c, "有效绑定关系")
			return
		}
		utils.RespondInternalServerError(c, "解绑失败", err.Error())
		return
	}
	utils.RespondSuccess(c, http.StatusOK, nil, "解绑成功")
}

// ListBindings godoc
// @Summary 分页查询绑定关系
// @Description 号码条件不足11位时按前缀范围查询
// @Tags Bindings
// @Produce json
// @Param page query int false "页码，默认 1"
// @Param pageSize query int false "每页条数，默认 10"
// @Param number query string false "号码精确或前缀查询"
// @Param imsi query string false "IMSI精确查询"
// @Param iccid query string false "ICCID精确查询"
// @Param bindingStatus query string false "绑定状态 (Bound/Unbound)"
// @Success 200 {object} utils.SuccessResponse "绑定列表与分页信息"
// @Router /bindings [get]
// @Security BearerAuth
func (h *BindingHandler) ListBindings(c *gin.Context) {
	page, pageSize := parsePagination(c)
	query := repositories.BindingQuery{
		Number:        c.Query("number"),
		Imsi:          c.Query("imsi"),
		Iccid:         c.Query("iccid"),
		BindingStatus: models.BindingStatus(c.Query("bindingStatus")),
	}

	bindings, total, err := h.service.ListBindings(c.Request.Context(), query, page, pageSize)
	if err != nil {
		utils.RespondInternalServerError(c, "查询绑定关系失败", err.Error())
		return
	}
	utils.RespondSuccess(c, http.StatusOK, gin.H{
		"items":      bindings,
		"pagination": newPaginationInfo(total, page, pageSize),
	}, "")
}

// CountBindings godoc
// @Summary 按状态统计绑定关系数量
// @Tags Bindings
// @Produce json
// @Success 200 {object} utils.SuccessResponse "各状态的绑定数量"
// @Router /bindings/count [get]
// @Security BearerAuth
func (h *BindingHandler) CountBindings(c *gin.Context) {
	counts, err := h.service.CountBindings(c.Request.Context())
	if err != nil {
		utils.RespondInternalServerError(c, "统计绑定关系失败", err.Error())
		return
	}
	utils.RespondSuccess(c, http.StatusOK, counts, "")
}
