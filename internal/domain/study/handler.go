package study

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/felixsiegmeier/redcap-mcs/internal/domain/aggregation"
	"github.com/felixsiegmeier/redcap-mcs/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/imports", h.CreateImport)
	api.GET("/imports", h.ListImports)
	api.GET("/imports/:id", h.GetImport)
	api.DELETE("/imports/:id", h.DeleteImport)
	api.GET("/imports/:id/days", h.ListDays)
	api.GET("/imports/:id/parameters", h.ListParameters)
	api.GET("/imports/:id/parameters/values", h.ListParameterValues)
	api.POST("/imports/:id/records", h.BuildRecords)
	api.GET("/imports/:id/records", h.ListRecords)
	api.GET("/records/:id", h.GetRecord)
	api.PATCH("/records/:id", h.UpdateRecord)
	api.GET("/records/:id/redcap", h.RedcapPayload)
}

type createImportRequest struct {
	RecordID   string          `json:"record_id"`
	Arm        aggregation.Arm `json:"arm"`
	SourceName string          `json:"source_name"`
	Content    string          `json:"content"`
}

// CreateImport accepts the export either as a JSON body or as a multipart
// upload with record_id/arm form fields and the export in the "file" part.
func (h *Handler) CreateImport(c echo.Context) error {
	req, err := readImportRequest(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "export content is required")
	}

	imp, err := h.svc.ImportExport(c.Request().Context(), req.RecordID, req.Arm, req.SourceName, req.Content)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, imp)
}

func readImportRequest(c echo.Context) (*createImportRequest, error) {
	var req createImportRequest

	if file, err := c.FormFile("file"); err == nil {
		src, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer src.Close()
		content, err := io.ReadAll(src)
		if err != nil {
			return nil, err
		}
		req.RecordID = c.FormValue("record_id")
		req.Arm = aggregation.Arm(c.FormValue("arm"))
		req.SourceName = file.Filename
		req.Content = string(content)
		return &req, nil
	}

	if err := c.Bind(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (h *Handler) ListImports(c echo.Context) error {
	p := pagination.FromContext(c)
	imports, total, err := h.svc.ListImports(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(imports, total, p.Limit, p.Offset))
}

func (h *Handler) GetImport(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	imp, err := h.svc.GetImport(c.Request().Context(), id)
	if err != nil {
		return notFoundOr(err)
	}
	return c.JSON(http.StatusOK, imp)
}

func (h *Handler) DeleteImport(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteImport(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListDays(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	days, err := h.svc.Days(c.Request().Context(), id)
	if err != nil {
		return notFoundOr(err)
	}

	out := make([]string, len(days))
	for i, day := range days {
		out[i] = day.Format("2006-01-02")
	}
	return c.JSON(http.StatusOK, map[string]any{"days": out})
}

func (h *Handler) ListParameters(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	day, err := time.Parse("2006-01-02", c.QueryParam("day"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "day must be YYYY-MM-DD")
	}

	params, err := h.svc.Parameters(c.Request().Context(), id, day)
	if err != nil {
		return notFoundOr(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"parameters": params})
}

func (h *Handler) ListParameterValues(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	day, err := time.Parse("2006-01-02", c.QueryParam("day"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "day must be YYYY-MM-DD")
	}
	parameter := c.QueryParam("parameter")
	if parameter == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "parameter is required")
	}

	values, err := h.svc.ParameterValues(c.Request().Context(), id, day,
		c.QueryParam("source"), c.QueryParam("category"), parameter)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "import not found")
		}
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"values": values})
}

func (h *Handler) BuildRecords(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var opts BuildOptions
	if err := c.Bind(&opts); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	entries, err := h.svc.BuildRecords(c.Request().Context(), id, opts)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "import not found")
		}
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, entries)
}

func (h *Handler) ListRecords(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	entries, err := h.svc.ListRecords(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *Handler) GetRecord(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	entry, err := h.svc.GetRecord(c.Request().Context(), id)
	if err != nil {
		return notFoundOr(err)
	}
	return c.JSON(http.StatusOK, entry)
}

func (h *Handler) UpdateRecord(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	patch, err := io.ReadAll(c.Request().Body)
	if err != nil || !json.Valid(patch) {
		return echo.NewHTTPError(http.StatusBadRequest, "body must be a JSON object")
	}

	entry, err := h.svc.UpdateRecord(c.Request().Context(), id, patch)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "record not found")
		}
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, entry)
}

func (h *Handler) RedcapPayload(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	payload, err := h.svc.RedcapPayload(c.Request().Context(), id)
	if err != nil {
		return notFoundOr(err)
	}
	return c.JSON(http.StatusOK, payload)
}

func notFoundOr(err error) error {
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
