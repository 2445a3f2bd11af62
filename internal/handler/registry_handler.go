package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/unilib/internal/middleware"
	"github.com/hitoshi/unilib/internal/model"
)

// DepartmentProvider は学科一覧の取得元インターフェース。
type DepartmentProvider interface {
	FetchDepartments(ctx context.Context) ([]model.Department, error)
}

// RegistryHandler はHEMISレジストリ参照系のHTTPハンドラー。
type RegistryHandler struct {
	provider DepartmentProvider
}

// NewRegistryHandler はRegistryHandlerを生成する。
func NewRegistryHandler(provider DepartmentProvider) *RegistryHandler {
	return &RegistryHandler{provider: provider}
}

type departmentsResponse struct {
	Success bool               `json:"success"`
	Data    []model.Department `json:"data"`
}

// Departments はHEMISの学科一覧を返す。
// GET /api/hemis/departments
func (h *RegistryHandler) Departments(w http.ResponseWriter, r *http.Request) {
	departments, err := h.provider.FetchDepartments(r.Context())
	if err != nil {
		slog.Error("failed to fetch departments", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewRegistryUnavailableError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(departmentsResponse{
		Success: true,
		Data:    departments,
	})
}
