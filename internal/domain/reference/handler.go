package reference

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/sevacare/refdata/internal/platform/auth"
	"github.com/sevacare/refdata/internal/platform/upload"
	"github.com/sevacare/refdata/pkg/pagination"
)

type Handler struct {
	svc      *Service
	logger   zerolog.Logger
	entities []Entity
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger, entities: Entities()}
}

// RegisterRoutes mounts one resource group per entity type:
//
//	POST /<entity>/create/upload/
//	PUT  /<entity>/update/upload/
//	PUT  /<entity>/suspend/upload/
//	GET  /<entity>
func (h *Handler) RegisterRoutes(api *echo.Group) {
	role := auth.RequireRole("admin")

	for _, e := range h.entities {
		e := e
		g := api.Group("/"+e.Route, role)
		g.POST("/create/upload/", h.BulkCreate(e))
		g.PUT("/update/upload/", h.BulkRename(e))
		g.PUT("/suspend/upload/", h.BulkSuspend(e))
		g.GET("", h.List(e))
	}
}

func (h *Handler) BulkCreate(e Entity) echo.HandlerFunc {
	return func(c echo.Context) error {
		rows, err := h.parseUpload(c, e.KeyColumns)
		if err != nil {
			return err
		}

		result, err := h.svc.BulkCreate(c.Request().Context(), e, rows)
		if err != nil {
			return h.serviceError(c, e, err)
		}

		return c.JSON(http.StatusCreated, map[string]interface{}{
			"message":                    fmt.Sprintf("%d new %s added", result.Inserted, e.Plural),
			e.Plural + "_already_present": result.AlreadyPresent,
		})
	}
}

func (h *Handler) BulkRename(e Entity) echo.HandlerFunc {
	return func(c echo.Context) error {
		required := append(append([]string{}, e.KeyColumns...), e.RenameColumns()...)
		rows, err := h.parseUpload(c, required)
		if err != nil {
			return err
		}

		result, err := h.svc.BulkRename(c.Request().Context(), e, rows)
		if err != nil {
			return h.serviceError(c, e, err)
		}

		return c.JSON(http.StatusOK, map[string]interface{}{
			"message":                  fmt.Sprintf("%d %s updated", result.Updated, e.Plural),
			"updated_count":            result.Updated,
			"not_updated_" + e.Plural: result.Skipped,
		})
	}
}

func (h *Handler) BulkSuspend(e Entity) echo.HandlerFunc {
	return func(c echo.Context) error {
		required := append(append([]string{}, e.KeyColumns...), "active_flag")
		rows, err := h.parseUpload(c, required)
		if err != nil {
			return err
		}

		result, err := h.svc.BulkSuspend(c.Request().Context(), e, rows)
		if err != nil {
			return h.serviceError(c, e, err)
		}

		return c.JSON(http.StatusOK, map[string]interface{}{
			"message":                fmt.Sprintf("%d %s updated", len(result.Updated), e.Plural),
			"updated_" + e.Plural:   result.Updated,
			"not_found_" + e.Plural: result.NotFound,
		})
	}
}

func (h *Handler) List(e Entity) echo.HandlerFunc {
	return func(c echo.Context) error {
		pg := pagination.FromContext(c)
		items, total, err := h.svc.List(c.Request().Context(), e, pg.Limit, pg.Offset)
		if err != nil {
			return h.serviceError(c, e, err)
		}

		rows := make([]map[string]interface{}, len(items))
		for i, rec := range items {
			row := map[string]interface{}{
				"id":         rec.ID,
				"remarks":    rec.Remarks,
				"active":     boolToFlag(rec.Active),
				"created_at": rec.CreatedAt,
				"updated_at": rec.UpdatedAt,
			}
			for j, col := range e.KeyColumns {
				row[col] = rec.Key[j]
			}
			rows[i] = row
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(rows, total, pg.Limit, pg.Offset))
	}
}

// parseUpload reads the attached file: extension check before any parsing,
// then header validation, then chunked row reads. All failures map to 400.
func (h *Handler) parseUpload(c echo.Context, required []string) ([]upload.Row, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "missing file attachment")
	}

	if err := upload.CheckExtension(fh.Filename); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	src, err := fh.Open()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "unreadable file attachment")
	}
	defer src.Close()

	reader, err := upload.NewReader(src, required...)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return rows, nil
}

// serviceError maps service failures onto the error taxonomy: client input
// problems become 400 with detail, storage failures become a generic 500
// with the detail only logged.
func (h *Handler) serviceError(c echo.Context, e Entity, err error) error {
	if errors.Is(err, ErrNoValidRows) {
		return echo.NewHTTPError(http.StatusBadRequest, ErrNoValidRows.Error())
	}

	rid, _ := c.Get("request_id").(string)
	h.logger.Error().
		Err(err).
		Str("request_id", rid).
		Str("entity", e.Name).
		Msg("bulk operation failed")
	return echo.NewHTTPError(http.StatusInternalServerError, "storage operation failed")
}
