package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ecodeli/ecodeli-backend/internal/service"
)

const uploadTimeout = 30 * time.Second

// ProviderHandler serves /api/prestataires/:id.
type ProviderHandler struct {
	catalog      *service.Catalog
	applications *service.Applications
	dashboard    *service.Dashboard
	vault        *service.Vault
	log          *zap.Logger
}

func NewProviderHandler(catalog *service.Catalog, applications *service.Applications, dashboard *service.Dashboard,
	vault *service.Vault, log *zap.Logger) *ProviderHandler {
	return &ProviderHandler{catalog: catalog, applications: applications, dashboard: dashboard, vault: vault, log: log}
}

func (h *ProviderHandler) EligibleRequests(c echo.Context) error {
	pid, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.catalog.EligibleForProvider(ctx, pid)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, out)
}

// EligibleRequestsPaginated reads page (zero-based), size, search, dateMin,
// dateMax and localisation from the query string.
func (h *ProviderHandler) EligibleRequestsPaginated(c echo.Context) error {
	pid, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	page, err := queryInt(c, "page", 0)
	if err != nil {
		return respondError(c, h.log, err)
	}
	size, err := queryInt(c, "size", 10)
	if err != nil {
		return respondError(c, h.log, err)
	}
	f := service.EligibleFilter{
		Search:   c.QueryParam("search"),
		Location: c.QueryParam("localisation"),
	}
	if f.DateMin, err = queryDate(c, "dateMin"); err != nil {
		return respondError(c, h.log, err)
	}
	if f.DateMax, err = queryDate(c, "dateMax"); err != nil {
		return respondError(c, h.log, err)
	}

	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.catalog.EligiblePaginated(ctx, pid, page, size, f)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, out)
}

type applicationReq struct {
	RequestID uint64 `json:"demandeId"`
	Note      string `json:"messagePersonnalise"`
	Delay     *int   `json:"delaiPropose"`
}

func (h *ProviderHandler) Apply(c echo.Context) error {
	pid, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	var body applicationReq
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid body")
	}
	if body.RequestID == 0 {
		return badRequest(c, "demandeId is required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	app, err := h.applications.Create(ctx, pid, body.RequestID, body.Note, body.Delay)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"data":    app,
		"message": "Candidature envoyée avec succès",
	})
}

func (h *ProviderHandler) Applications(c echo.Context) error {
	pid, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.dashboard.ListApplications(ctx, pid)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ProviderHandler) Stats(c echo.Context) error {
	pid, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.dashboard.Stats(ctx, pid)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ProviderHandler) Validation(c echo.Context) error {
	pid, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.dashboard.ValidationSnapshot(ctx, pid)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Upload expects a multipart form with a "file" part and an optional
// "description" field.
func (h *ProviderHandler) Upload(c echo.Context) error {
	pid, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return respondError(c, h.log, service.PreconditionFailed("missing file"))
	}
	src, err := fh.Open()
	if err != nil {
		return respondError(c, h.log, service.Internal("open upload", err))
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(c.Request().Context(), uploadTimeout)
	defer cancel()
	j, err := h.vault.Upload(ctx, pid, service.Upload{Name: fh.Filename, Size: fh.Size, Content: src}, c.FormValue("description"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"data":    j,
		"message": "Justificatif téléversé avec succès",
	})
}

func (h *ProviderHandler) Justifications(c echo.Context) error {
	pid, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.vault.List(ctx, pid)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ProviderHandler) DeleteJustification(c echo.Context) error {
	pid, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	jid, err := paramID(c, "jid")
	if err != nil {
		return respondError(c, h.log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.vault.Delete(ctx, pid, jid); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Justificatif supprimé avec succès",
	})
}

func queryInt(c echo.Context, name string, def int) (int, error) {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, service.Validation("%s must be an integer", name)
	}
	return n, nil
}

func queryDate(c echo.Context, name string) (*time.Time, error) {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return nil, nil
	}
	t, err := service.ParseDate(v)
	if err != nil {
		return nil, service.Validation("%s must be a date (YYYY-MM-DD)", name)
	}
	return &t, nil
}
