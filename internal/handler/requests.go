package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ecodeli/ecodeli-backend/internal/model"
	"github.com/ecodeli/ecodeli-backend/internal/service"
)

// RequestHandler serves /api/demandes-service.
type RequestHandler struct {
	catalog *service.Catalog
	log     *zap.Logger
}

func NewRequestHandler(catalog *service.Catalog, log *zap.Logger) *RequestHandler {
	return &RequestHandler{catalog: catalog, log: log}
}

// clientRequest is the projection returned by GET /client/:clientId.
type clientRequest struct {
	ID               uint64                `json:"idDemande"`
	Title            string                `json:"titre"`
	Description      string                `json:"description"`
	Category         model.ServiceCategory `json:"categorieService"`
	SpecificType     string                `json:"typeServiceSpecifique"`
	CustomLabel      string                `json:"servicePersonnalise"`
	DepartureAddress string                `json:"adresseDepart"`
	ArrivalAddress   string                `json:"adresseArrivee"`
	DesiredDate      *time.Time            `json:"dateSouhaitee"`
	TimeSlot         string                `json:"creneauHoraire"`
	BudgetMin        decimal.NullDecimal   `json:"budgetMin"`
	BudgetMax        decimal.NullDecimal   `json:"budgetMax"`
	Details          string                `json:"detailsSpecifiques"`
	Status           model.RequestStatus   `json:"statut"`
	CreatedAt        time.Time             `json:"dateCreation"`
	UpdatedAt        time.Time             `json:"dateModification"`
}

func projectClientRequest(r model.ServiceRequest) clientRequest {
	return clientRequest{
		ID:               r.ID,
		Title:            r.Title,
		Description:      r.Description,
		Category:         r.Category,
		SpecificType:     r.SpecificType,
		CustomLabel:      r.CustomLabel,
		DepartureAddress: r.DepartureAddress,
		ArrivalAddress:   r.ArrivalAddress,
		DesiredDate:      r.DesiredDate,
		TimeSlot:         r.TimeSlot,
		BudgetMin:        r.BudgetMin,
		BudgetMax:        r.BudgetMax,
		Details:          r.Details,
		Status:           r.Status,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

// bindBag decodes a JSON object keeping numbers exact.
func bindBag(c echo.Context) (map[string]any, error) {
	bag := map[string]any{}
	dec := json.NewDecoder(c.Request().Body)
	dec.UseNumber()
	if err := dec.Decode(&bag); err != nil && !errors.Is(err, io.EOF) {
		return nil, service.Validation("invalid JSON body")
	}
	return bag, nil
}

func (h *RequestHandler) Create(c echo.Context) error {
	bag, err := bindBag(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	req, err := h.catalog.Create(ctx, bag)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    req,
		"message": "Demande créée avec succès",
	})
}

func (h *RequestHandler) List(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.catalog.All(ctx)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *RequestHandler) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	req, err := h.catalog.ByID(ctx, id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, req)
}

func (h *RequestHandler) ByClient(c echo.Context) error {
	id, err := paramID(c, "clientId")
	if err != nil {
		return respondError(c, h.log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	reqs, err := h.catalog.ByClient(ctx, id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	out := make([]clientRequest, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, projectClientRequest(r))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *RequestHandler) ByCategory(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.catalog.ByCategory(ctx, model.ServiceCategory(c.Param("category")))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *RequestHandler) Available(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.catalog.Available(ctx)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *RequestHandler) Update(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	bag, err := bindBag(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	req, err := h.catalog.Update(ctx, id, bag)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, req)
}

type statusReq struct {
	Status string `json:"statut"`
}

func (h *RequestHandler) ChangeStatus(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	var body statusReq
	if err := c.Bind(&body); err != nil || body.Status == "" {
		return badRequest(c, "statut is required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if _, err := h.catalog.ChangeStatus(ctx, id, model.RequestStatus(body.Status)); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":       true,
		"message":       "Statut mis à jour avec succès",
		"nouveauStatut": body.Status,
	})
}

func (h *RequestHandler) Cancel(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.catalog.Cancel(ctx, id); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Demande de service annulée avec succès",
	})
}

func (h *RequestHandler) Search(c echo.Context) error {
	filters, err := bindBag(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.catalog.Search(ctx, filters)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *RequestHandler) Statistics(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	st, err := h.catalog.Statistics(ctx)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, st)
}
