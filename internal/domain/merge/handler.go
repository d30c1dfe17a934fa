package merge

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carebase/carebase/internal/platform/auth"
)

type Handler struct {
	merger     *Merger
	scanner    *Scanner
	maintainer *Maintainer
	records    RecordRepository
	log        zerolog.Logger
}

func NewHandler(merger *Merger, scanner *Scanner, maintainer *Maintainer, records RecordRepository, log zerolog.Logger) *Handler {
	return &Handler{merger: merger, scanner: scanner, maintainer: maintainer, records: records, log: log}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	admin := api.Group("/admin/patients", auth.RequireRole("admin"))

	admin.POST("/merge", h.MergePatients)
	admin.POST("/reconcile-additional-data", h.ReconcileAdditionalData)
	admin.POST("/merge-maintenance", h.RunMergeMaintenance)
	admin.GET("/merge-coverage", h.MergeCoverage)
}

type mergeRequest struct {
	KeepPatientID     string `json:"keep_patient_id"`
	UnwantedPatientID string `json:"unwanted_patient_id"`
}

func (h *Handler) MergePatients(c echo.Context) error {
	var req mergeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	keepID, err := uuid.Parse(req.KeepPatientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid keep_patient_id")
	}
	unwantedID, err := uuid.Parse(req.UnwantedPatientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid unwanted_patient_id")
	}

	result, err := h.merger.Merge(c.Request().Context(), keepID, unwantedID)
	if err != nil {
		var invalid *InvalidParameterError
		if errors.As(err, &invalid) {
			return echo.NewHTTPError(http.StatusBadRequest, invalid.Error())
		}
		h.log.Error().Err(err).Msg("patient merge failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "merge failed")
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) ReconcileAdditionalData(c echo.Context) error {
	totals, err := h.scanner.Sweep(c.Request().Context())
	if err != nil {
		h.log.Error().Err(err).Msg("additional data sweep failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "sweep failed")
	}
	return c.JSON(http.StatusOK, totals)
}

func (h *Handler) RunMergeMaintenance(c echo.Context) error {
	counts, err := h.maintainer.Run(c.Request().Context())
	if err != nil {
		h.log.Error().Err(err).Msg("merge maintenance failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "maintenance failed")
	}
	return c.JSON(http.StatusOK, map[string]any{"records_affected": counts})
}

// MergeCoverage reports patient-linked tables missing a declared merge
// strategy. A non-empty missing list means new schema has outpaced the merge
// registry and merges would orphan rows in those tables.
func (h *Handler) MergeCoverage(c echo.Context) error {
	tables, err := h.records.PatientLinkedTables(c.Request().Context())
	if err != nil {
		h.log.Error().Err(err).Msg("coverage inspection failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "coverage inspection failed")
	}
	missing := MissingCoverage(tables)
	return c.JSON(http.StatusOK, map[string]any{
		"linked_tables": tables,
		"missing":       missing,
		"covered":       len(missing) == 0,
	})
}
