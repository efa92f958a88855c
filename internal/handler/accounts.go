package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ecodeli/ecodeli-backend/internal/model"
	"github.com/ecodeli/ecodeli-backend/internal/service"
)

// AccountHandler serves POST /api/utilisateurs.
type AccountHandler struct {
	accounts *service.Accounts
	log      *zap.Logger
}

func NewAccountHandler(accounts *service.Accounts, log *zap.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, log: log}
}

type registerReq struct {
	FirstName string `json:"prenom"`
	LastName  string `json:"nom"`
	Email     string `json:"email"`
	Password  string `json:"motDePasse"`
	Role      string `json:"role"` // CLIENT | PROVIDER
}

func (h *AccountHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	u, err := h.accounts.Register(ctx, service.Registration{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Role:      model.Role(req.Role),
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"data":    u,
		"message": "Compte créé avec succès",
	})
}
