package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/dto"
	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/models"
	appErrors "github.com/ajaykrishnavemula/Campus-Pass-sub001/pkg/errors"
	"github.com/ajaykrishnavemula/Campus-Pass-sub001/pkg/passdoc"
	"github.com/ajaykrishnavemula/Campus-Pass-sub001/pkg/response"
)

type outpassService interface {
	Create(ctx context.Context, actor models.Actor, req dto.CreateOutpassRequest) (*models.Outpass, error)
	Approve(ctx context.Context, actor models.Actor, id string, req dto.ApproveOutpassRequest) (*models.Outpass, error)
	Reject(ctx context.Context, actor models.Actor, id string, req dto.RejectOutpassRequest) (*models.Outpass, error)
	Cancel(ctx context.Context, actor models.Actor, id string) (*models.Outpass, error)
	CheckOut(ctx context.Context, actor models.Actor, id string, req dto.CheckOutRequest) (*models.Outpass, error)
	CheckIn(ctx context.Context, actor models.Actor, id string, req dto.CheckInRequest) (*models.Outpass, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.OutpassDetail, error)
	List(ctx context.Context, actor models.Actor, query dto.OutpassQuery) ([]models.Outpass, *models.Pagination, error)
	Stats(ctx context.Context, actor models.Actor) (*models.OutpassStats, error)
}

type passRenderer interface {
	Render(doc passdoc.Document) ([]byte, error)
}

// OutpassHandler exposes REST endpoints for the outpass lifecycle.
type OutpassHandler struct {
	service  outpassService
	renderer passRenderer
}

// NewOutpassHandler constructs the handler.
func NewOutpassHandler(service outpassService, renderer passRenderer) *OutpassHandler {
	return &OutpassHandler{service: service, renderer: renderer}
}

// Create godoc
// @Summary Request an outpass
// @Tags Outpasses
// @Accept json
// @Produce json
// @Param payload body dto.CreateOutpassRequest true "Outpass payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /outpasses [post]
func (h *OutpassHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateOutpassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid outpass payload"))
		return
	}
	outpass, err := h.service.Create(c.Request.Context(), claims.Actor(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, outpass)
}

// List godoc
// @Summary List outpasses visible to the caller
// @Tags Outpasses
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param type query string false "Outpass type"
// @Param hostel query string false "Hostel filter (security/admin only)"
// @Param overdue query bool false "Only overdue passes"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /outpasses [get]
func (h *OutpassHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	query := dto.OutpassQuery{
		Hostel: strings.TrimSpace(c.Query("hostel")),
	}
	if rawType := c.Query("type"); rawType != "" {
		query.Type = models.OutpassType(strings.ToUpper(rawType))
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		for _, part := range strings.Split(rawStatus, ",") {
			status := models.OutpassStatus(strings.ToUpper(strings.TrimSpace(part)))
			if status != "" {
				query.Status = append(query.Status, status)
			}
		}
	}
	if rawOverdue := c.Query("overdue"); rawOverdue != "" {
		overdue, err := strconv.ParseBool(rawOverdue)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid overdue filter"))
			return
		}
		query.OverdueOnly = overdue
	}
	if from, ok := parseTimeQuery(c, "from"); ok {
		query.From = from
	} else {
		return
	}
	if to, ok := parseTimeQuery(c, "to"); ok {
		query.To = to
	} else {
		return
	}
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	outpasses, pagination, err := h.service.List(c.Request.Context(), claims.Actor(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outpasses, pagination)
}

// Get godoc
// @Summary Get one outpass with related users
// @Tags Outpasses
// @Produce json
// @Param id path string true "Outpass ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /outpasses/{id} [get]
func (h *OutpassHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	detail, err := h.service.Get(c.Request.Context(), claims.Actor(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Approve godoc
// @Summary Approve a pending outpass
// @Tags Outpasses
// @Accept json
// @Produce json
// @Param id path string true "Outpass ID"
// @Param payload body dto.ApproveOutpassRequest false "Optional remarks"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /outpasses/{id}/approve [post]
func (h *OutpassHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ApproveOutpassRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid approval payload"))
			return
		}
	}
	outpass, err := h.service.Approve(c.Request.Context(), claims.Actor(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outpass, nil)
}

// Reject godoc
// @Summary Reject a pending outpass
// @Tags Outpasses
// @Accept json
// @Produce json
// @Param id path string true "Outpass ID"
// @Param payload body dto.RejectOutpassRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /outpasses/{id}/reject [post]
func (h *OutpassHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.RejectOutpassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required"))
		return
	}
	outpass, err := h.service.Reject(c.Request.Context(), claims.Actor(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outpass, nil)
}

// Cancel godoc
// @Summary Cancel own outpass
// @Tags Outpasses
// @Produce json
// @Param id path string true "Outpass ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /outpasses/{id}/cancel [post]
func (h *OutpassHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	outpass, err := h.service.Cancel(c.Request.Context(), claims.Actor(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outpass, nil)
}

// CheckOut godoc
// @Summary Record gate exit
// @Tags Outpasses
// @Accept json
// @Produce json
// @Param id path string true "Outpass ID"
// @Param payload body dto.CheckOutRequest true "Pass code"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /outpasses/{id}/check-out [post]
func (h *OutpassHandler) CheckOut(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CheckOutRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Code) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "pass code is required"))
		return
	}
	outpass, err := h.service.CheckOut(c.Request.Context(), claims.Actor(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outpass, nil)
}

// CheckIn godoc
// @Summary Record gate return
// @Tags Outpasses
// @Accept json
// @Produce json
// @Param id path string true "Outpass ID"
// @Param payload body dto.CheckInRequest false "Optional remarks"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /outpasses/{id}/check-in [post]
func (h *OutpassHandler) CheckIn(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CheckInRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid check-in payload"))
			return
		}
	}
	outpass, err := h.service.CheckIn(c.Request.Context(), claims.Actor(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outpass, nil)
}

// Stats godoc
// @Summary Aggregate pass counts for dashboards
// @Tags Outpasses
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /outpasses/stats [get]
func (h *OutpassHandler) Stats(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	stats, err := h.service.Stats(c.Request.Context(), claims.Actor())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Document godoc
// @Summary Download a printable exit pass
// @Tags Outpasses
// @Produce application/pdf
// @Param id path string true "Outpass ID"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /outpasses/{id}/document [get]
func (h *OutpassHandler) Document(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if h.renderer == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "pass rendering not configured"))
		return
	}

	detail, err := h.service.Get(c.Request.Context(), claims.Actor(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if detail.Status != models.OutpassStatusApproved && detail.Status != models.OutpassStatusCheckedOut {
		response.Error(c, appErrors.Clone(appErrors.ErrConflict, "pass document is available only while the pass is active"))
		return
	}

	doc := passdoc.Document{
		Number:      detail.Number,
		Type:        string(detail.Type),
		Hostel:      detail.StudentHostel,
		Reason:      detail.Reason,
		Destination: detail.Destination,
		FromDate:    detail.FromDate,
		ToDate:      detail.ToDate,
	}
	if detail.Student != nil {
		doc.StudentName = detail.Student.FullName
	}
	if detail.Warden != nil {
		doc.ApprovedBy = detail.Warden.FullName
	}
	if detail.ApprovedAt != nil {
		doc.ApprovedAt = *detail.ApprovedAt
	}
	// The gate code is printed only on the owning student's copy.
	if claims.UserID == detail.StudentID && detail.QRCode != nil {
		doc.Code = *detail.QRCode
	}

	payload, err := h.renderer.Render(doc)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pass"))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=outpass-%d.pdf", detail.Number))
	c.Data(http.StatusOK, "application/pdf", payload)
}

func parseTimeQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid %s timestamp", name)))
		return nil, false
	}
	return &ts, true
}
