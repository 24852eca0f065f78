package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/rl1809/demand-desk/internal/adapter/export"
	"github.com/rl1809/demand-desk/internal/auth"
	"github.com/rl1809/demand-desk/internal/core/calendar"
	"github.com/rl1809/demand-desk/internal/core/domain"
	"github.com/rl1809/demand-desk/internal/core/service"
	"github.com/rl1809/demand-desk/internal/core/workflow"
)

type HTTPHandler struct {
	demands    *service.DemandService
	reports    *service.ReportService
	fiscalYear string
	logger     *zap.Logger
}

type LineItemBody struct {
	// ID addresses an existing line; zero adds a new one.
	ID            int64  `json:"id"`
	ItemID        string `json:"itemId"`
	Name          string `json:"name"`
	Specification string `json:"specification"`
	Unit          string `json:"unit"`
	Quantity      string `json:"quantity"`
	Remarks       string `json:"remarks"`
}

type DemandBody struct {
	FiscalYear        string            `json:"fiscalYear"`
	Version           int               `json:"version"`
	Date              string            `json:"date"`
	Purpose           string            `json:"purpose"`
	RecommendedBy     *domain.Signature `json:"recommendedBy"`
	StoreKeeperStatus *string           `json:"storeKeeperStatus"`
	Items             []LineItemBody    `json:"items"`
}

type RejectBody struct {
	Reason string `json:"reason"`
}

type OutcomeResponse struct {
	Outcome         string               `json:"outcome"`
	From            domain.RequestStatus `json:"from,omitempty"`
	To              domain.RequestStatus `json:"to"`
	Reason          string               `json:"reason,omitempty"`
	Warnings        []string             `json:"warnings,omitempty"`
	UnresolvedLines []int64              `json:"unresolvedLines,omitempty"`
	Request         domain.DemandRequest `json:"request"`
}

func NewHTTPHandler(demands *service.DemandService, reports *service.ReportService, fiscalYear string, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{demands: demands, reports: reports, fiscalYear: fiscalYear, logger: logger}
}

func (h *HTTPHandler) RegisterRoutes(r *gin.Engine, tokens *auth.TokenManager) {
	r.GET("/health", h.HealthCheck)

	api := r.Group("/api/v1", Auth(tokens))
	{
		api.GET("/catalog", h.Catalog)
		api.POST("/catalog/refresh", h.RefreshCatalog)

		requests := api.Group("/requests")
		requests.GET("/next-number", h.NextNumber)
		requests.GET("/pending", h.Pending)
		requests.GET("/mine", h.Mine)
		requests.GET("/:id", h.Get)
		requests.GET("/:id/selectable-items", h.SelectableItems)
		requests.POST("", h.Create)
		requests.PUT("/:id", h.Update)
		requests.POST("/:id/reject", h.Reject)
		requests.POST("/:id/resubmit", h.Resubmit)

		reports := api.Group("/reports")
		reports.GET("/inventory", h.InventoryReport)
		reports.GET("/rabies", h.RabiesReport)
	}
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) fiscalYearParam(c *gin.Context) string {
	return c.DefaultQuery("fiscalYear", h.fiscalYear)
}

func (h *HTTPHandler) Catalog(c *gin.Context) {
	items, err := h.demands.Catalog(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *HTTPHandler) RefreshCatalog(c *gin.Context) {
	actor, _ := actorFrom(c)
	items, err := h.demands.RefreshCatalog(c.Request.Context(), actor)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// NextNumber previews the number and date a new form starts with. The date
// is a suggestion; submit still requires the client to send one.
func (h *HTTPHandler) NextNumber(c *gin.Context) {
	fy := h.fiscalYearParam(c)
	n, err := h.demands.NextFormNumber(c.Request.Context(), fy)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fiscalYear": fy, "formNo": n, "date": calendar.Today()})
}

func (h *HTTPHandler) Pending(c *gin.Context) {
	actor, _ := actorFrom(c)
	list, err := h.demands.PendingFor(c.Request.Context(), actor, h.fiscalYearParam(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": list})
}

func (h *HTTPHandler) Mine(c *gin.Context) {
	actor, _ := actorFrom(c)
	list, err := h.demands.SubmittedBy(c.Request.Context(), actor, h.fiscalYearParam(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": list})
}

func (h *HTTPHandler) open(c *gin.Context, mode workflow.Mode) (*workflow.Session, bool) {
	actor, _ := actorFrom(c)
	sess, err := h.demands.OpenSession(c.Request.Context(), service.OpenOptions{
		Mode:      mode,
		Actor:     actor,
		RequestID: c.Param("id"),
	})
	if err != nil {
		h.writeError(c, err)
		return nil, false
	}
	return sess, true
}

func (h *HTTPHandler) Get(c *gin.Context) {
	sess, ok := h.open(c, workflow.ModeEdit)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"request":         sess.Draft(),
		"editable":        sess.Editable(),
		"unresolvedLines": sess.UnresolvedLines(),
	})
}

func (h *HTTPHandler) SelectableItems(c *gin.Context) {
	sess, ok := h.open(c, workflow.ModeView)
	if !ok {
		return
	}
	category, locked := sess.LockedCategory()
	resp := gin.H{"items": sess.SelectableCatalog()}
	if locked {
		resp["lockedCategory"] = category
	}
	c.JSON(http.StatusOK, resp)
}

func (h *HTTPHandler) Create(c *gin.Context) {
	var body DemandBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if body.FiscalYear == "" {
		body.FiscalYear = h.fiscalYear
	}

	actor, _ := actorFrom(c)
	sess, err := h.demands.OpenSession(c.Request.Context(), service.OpenOptions{
		Mode:       workflow.ModeNew,
		Actor:      actor,
		FiscalYear: body.FiscalYear,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.submit(c, sess, body, http.StatusCreated)
}

func (h *HTTPHandler) Update(c *gin.Context) {
	var body DemandBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	sess, ok := h.open(c, workflow.ModeEdit)
	if !ok {
		return
	}
	if body.Version != 0 && body.Version != sess.Stored().Version {
		h.writeError(c, domain.ErrConflict)
		return
	}
	h.submit(c, sess, body, http.StatusOK)
}

func (h *HTTPHandler) submit(c *gin.Context, sess *workflow.Session, body DemandBody, status int) {
	// Content edits only reach editable sessions; approvers act on the
	// stored copy.
	if sess.Editable() {
		if err := applyBody(sess, body); err != nil {
			h.writeError(c, err)
			return
		}
	}

	unresolved := sess.UnresolvedLines()
	result, err := h.demands.Submit(c.Request.Context(), sess)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if result.Kind == workflow.Denied {
		status = http.StatusOK
	}
	resp := outcome(result)
	resp.UnresolvedLines = unresolved
	c.JSON(status, resp)
}

func (h *HTTPHandler) Reject(c *gin.Context) {
	var body RejectBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	sess, ok := h.open(c, workflow.ModeEdit)
	if !ok {
		return
	}
	result, err := h.demands.Reject(c.Request.Context(), sess, body.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome(result))
}

func (h *HTTPHandler) Resubmit(c *gin.Context) {
	sess, ok := h.open(c, workflow.ModeEdit)
	if !ok {
		return
	}
	result, err := h.demands.Resubmit(c.Request.Context(), sess)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome(result))
}

func (h *HTTPHandler) InventoryReport(c *gin.Context) {
	fy := h.fiscalYearParam(c)
	items, err := h.reports.InventoryReport(c.Request.Context(), fy)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if c.Query("format") == "xlsx" {
		f, filename, err := export.InventoryWorkbook(fy, items)
		if err != nil {
			h.writeError(c, err)
			return
		}
		h.writeWorkbook(c, f, filename)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fiscalYear": fy, "items": items})
}

// RabiesReport takes the BS month directly, or a Gregorian date=YYYY-MM-DD
// whose BS month is reported.
func (h *HTTPHandler) RabiesReport(c *gin.Context) {
	month := c.Query("month")
	if month == "" && c.Query("date") != "" {
		month = calendar.MonthIndex(calendar.ToLocalMonth(c.Query("date")))
	}
	if month == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "month is required", "field": "month"})
		return
	}

	m, err := h.reports.ClinicalReport(c.Request.Context(), h.fiscalYearParam(c), month)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if c.Query("format") == "xlsx" {
		f, filename, err := export.ClinicalWorkbook(m)
		if err != nil {
			h.writeError(c, err)
			return
		}
		h.writeWorkbook(c, f, filename)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *HTTPHandler) writeWorkbook(c *gin.Context, f *excelize.File, filename string) {
	defer f.Close()

	c.Header("Content-Type", export.ContentType)
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")
	c.Status(http.StatusOK)

	if err := f.Write(c.Writer); err != nil {
		h.logger.Error("write workbook failed", zap.String("file", filename), zap.Error(err))
	}
}

func outcome(r *service.Result) OutcomeResponse {
	resp := OutcomeResponse{
		Outcome:  string(r.Kind),
		From:     r.From,
		To:       r.To,
		Warnings: r.Warnings,
		Request:  r.Request,
	}
	if r.Denial != nil {
		resp.Reason = r.Denial.Error()
	}
	return resp
}

func (h *HTTPHandler) writeError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message, "field": verr.Field})
	case errors.Is(err, domain.ErrRequestNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
	case errors.Is(err, domain.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "request was changed by someone else, reload and retry"})
	case errors.Is(err, domain.ErrNotResubmittable), errors.Is(err, domain.ErrRefreshDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrReadOnly),
		errors.Is(err, domain.ErrCategoryLocked),
		errors.Is(err, domain.ErrLastLineItem),
		errors.Is(err, domain.ErrLineItemNotFound),
		errors.Is(err, domain.ErrUnknownField):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		h.logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
