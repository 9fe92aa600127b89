package reconciliation

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the reconciliation job and its reports over HTTP.
type Handler struct {
	service *Service
}

// NewHandler builds a reconciliation HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func statusFor(err error) int {
	if errors.Is(err, ErrReportNotFound) {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}

func toReportResponse(r Report) fiber.Map {
	m := fiber.Map{
		"id":                 r.ID,
		"report_date":        r.ReportDate.Format("2006-01-02"),
		"payment_gateway":    r.Gateway,
		"matched_count":      r.MatchedCount,
		"local_only_count":   r.LocalOnlyCount,
		"gateway_only_count": r.GatewayOnlyCount,
		"discrepancy_amount": r.DiscrepancyAmount.StringFixed(2),
		"anomalies":          r.Anomalies,
		"status":             r.Status,
		"created_at":         r.CreatedAt.Format(time.RFC3339Nano),
	}
	if r.ReviewedBy != "" {
		m["reviewed_by"] = r.ReviewedBy
		m["review_notes"] = r.ReviewNotes
	}
	return m
}

type runRequest struct {
	Date    string `json:"date"`
	Gateway string `json:"gateway"`
}

// Run executes the reconciliation job for one gateway day.
func (h *Handler) Run(c *fiber.Ctx) error {
	var req runRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	day, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	if req.Gateway == "" {
		return fiber.NewError(http.StatusBadRequest, "gateway is required")
	}
	report, err := h.service.Run(c.UserContext(), day, req.Gateway)
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toReportResponse(report))
}

// Get returns a persisted report.
func (h *Handler) Get(c *fiber.Ctx) error {
	report, err := h.service.Get(c.UserContext(), c.Params("reportID"))
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(toReportResponse(report))
}

type reviewRequest struct {
	ReviewedBy string `json:"reviewed_by"`
	Notes      string `json:"notes"`
}

// Review records the operator sign-off on a report.
func (h *Handler) Review(c *fiber.Ctx) error {
	var req reviewRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	report, err := h.service.Review(c.UserContext(), c.Params("reportID"), req.ReviewedBy, req.Notes)
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(toReportResponse(report))
}
