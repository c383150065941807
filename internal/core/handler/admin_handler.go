package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mkhonta/esave/internal/core/logger"
	"github.com/mkhonta/esave/internal/core/report"
	"github.com/mkhonta/esave/internal/core/usecase"
)

type AdminHandler struct {
	usecase usecase.VaultUsecase
	log     logger.Logger
}

func NewAdminHandler(uc usecase.VaultUsecase, log logger.Logger) *AdminHandler {
	return &AdminHandler{usecase: uc, log: log}
}

// GetRevenue serves GET /api/admin/revenue.
func (h *AdminHandler) GetRevenue(w http.ResponseWriter, r *http.Request) {
	revenue, err := h.usecase.Revenue(r.Context(), time.Now())
	if err != nil {
		h.log.Error("Failed to project revenue", logger.ErrorField("error", err))
		respondWithError(w, statusForError(err), "Failed to compute revenue")
		return
	}

	respondWithData(w, http.StatusOK, revenue)
}

// ExportRevenue serves GET /api/admin/revenue/export as an xlsx download.
func (h *AdminHandler) ExportRevenue(w http.ResponseWriter, r *http.Request) {
	revenue, txs, err := h.usecase.RevenueExport(r.Context(), time.Now())
	if err != nil {
		h.log.Error("Failed to build revenue export", logger.ErrorField("error", err))
		respondWithError(w, statusForError(err), "Failed to compute revenue")
		return
	}

	workbook, err := report.BuildRevenueWorkbook(revenue, txs)
	if err != nil {
		h.log.Error("Failed to render revenue workbook", logger.ErrorField("error", err))
		respondWithError(w, http.StatusInternalServerError, "Failed to render export")
		return
	}
	defer workbook.Close()

	filename := fmt.Sprintf("revenue-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if err := workbook.Write(w); err != nil {
		h.log.Error("Failed to stream revenue workbook", logger.ErrorField("error", err))
	}
}
