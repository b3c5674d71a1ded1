package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pinjaman/hybrid"
	"github.com/pinjaman/hybrid/internal/domain"
	"github.com/pinjaman/hybrid/internal/present/rest/middleware"
	"github.com/pinjaman/hybrid/internal/present/rest/presenter"
	"github.com/pinjaman/hybrid/internal/service"
	"github.com/pinjaman/hybrid/internal/usecase"
)

type Handler struct {
	draft    *usecase.DraftUsecase
	position *usecase.PositionUsecase
	repay    *usecase.RepayReferenceUsecase
	signal   *service.SignalService
}

func NewHandler(
	draft *usecase.DraftUsecase,
	position *usecase.PositionUsecase,
	repay *usecase.RepayReferenceUsecase,
	signal *service.SignalService,
) *Handler {
	return &Handler{
		draft:    draft,
		position: position,
		repay:    repay,
		signal:   signal,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.Use(measure)
	e.POST("/api/bank-details", h.handleBankDetails)
	e.GET("/api/bank-details/:draftId", h.handleGetBankDetails)
	e.GET("/api/public/rates", h.handleRates)
	e.GET("/api/quote", h.handleQuote)
	e.GET("/api/positions", h.handleListPositions)
	e.GET("/api/positions/:id", h.handleGetPosition)
	e.POST("/api/repay-references", h.handleRecordRepayReference)
	e.GET("/api/repay-references/:hash", h.handleGetRepayReference)
	e.PATCH("/api/repay-references/:hash", h.handleAttachRepayTx)
	e.GET("/realtime", h.handleRealtime)
}

func measure(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		timer := prometheus.NewTimer(httpLatency.WithLabelValues(c.Request().Method, c.Path()))
		defer timer.ObserveDuration()
		return next(c)
	}
}

func outcomeOf(err error) string {
	if err == nil {
		return "accepted"
	}
	var kinded domain.KindedError
	if errors.As(err, &kinded) {
		return kinded.Kind()
	}
	return "storage_error"
}

func (h *Handler) handleBankDetails(c echo.Context) error {
	ctx := c.Request().Context()

	var submission pinjaman.BankDetailsSubmission
	if err := c.Bind(&submission); err != nil {
		bankDetailsTotal.WithLabelValues("validation").Inc()
		return presenter.BadRequestMessage(c, "invalid request body")
	}

	err := h.draft.Submit(ctx, submission)
	bankDetailsTotal.WithLabelValues(outcomeOf(err)).Inc()
	if err != nil {
		return presenter.Error(c, err)
	}

	return presenter.OK(c, pinjaman.SubmitResponse{Success: true})
}

// handleGetBankDetails shows a draft to the wallet that signed it. A header
// hint is not enough here; the viewer must present a signed token.
func (h *Handler) handleGetBankDetails(c echo.Context) error {
	ctx := c.Request().Context()

	viewer, verified := middleware.Viewer(ctx)
	if !verified {
		return presenter.Error(c, domain.SignatureInvalidError{Reason: "a wallet-signed viewer token is required"})
	}

	draft, err := h.draft.Get(ctx, c.Param("draftId"))
	if err != nil {
		return presenter.Error(c, err)
	}
	if !strings.EqualFold(draft.WalletAddress, viewer) {
		return presenter.Error(c, domain.OwnershipMismatchError{})
	}
	return presenter.OK(c, draft)
}

func (h *Handler) handleRates(c echo.Context) error {
	rates, err := h.position.Rates(c.Request().Context())
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, rates)
}

func (h *Handler) handleQuote(c echo.Context) error {
	quote, err := h.position.Quote(
		c.Request().Context(),
		c.QueryParam("token"),
		c.QueryParam("amount"),
		c.QueryParam("requested"),
	)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, quote)
}

func (h *Handler) handleListPositions(c echo.Context) error {
	ctx := c.Request().Context()

	owner := c.QueryParam("owner")
	if owner == "" {
		owner, _ = middleware.Viewer(ctx)
	}
	if owner == "" {
		return presenter.BadRequestMessage(c, "owner parameter is required")
	}

	positions, err := h.position.List(ctx, owner)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, positions)
}

func (h *Handler) handleGetPosition(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid position id")
	}

	viewer, _ := middleware.Viewer(ctx)
	view, err := h.position.Get(ctx, id, viewer)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, view)
}

func (h *Handler) handleRecordRepayReference(c echo.Context) error {
	ctx := c.Request().Context()

	var ref domain.RepayReference
	if err := c.Bind(&ref); err != nil {
		return presenter.BadRequestMessage(c, "invalid request body")
	}

	if err := h.repay.Record(ctx, ref); err != nil {
		return presenter.Error(c, err)
	}
	return c.JSON(http.StatusCreated, pinjaman.SubmitResponse{Success: true})
}

func (h *Handler) handleGetRepayReference(c echo.Context) error {
	ref, err := h.repay.Lookup(c.Request().Context(), c.Param("hash"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, ref)
}

func (h *Handler) handleAttachRepayTx(c echo.Context) error {
	var body struct {
		TxHash string `json:"txHash"`
	}
	if err := c.Bind(&body); err != nil {
		return presenter.BadRequestMessage(c, "invalid request body")
	}

	if err := h.repay.AttachTx(c.Request().Context(), c.Param("hash"), body.TxHash); err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, pinjaman.SubmitResponse{Success: true})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Request struct {
	Type string `json:"type"`
}

// handleRealtime streams draft and position events of one wallet.
func (h *Handler) handleRealtime(c echo.Context) error {
	ctx := c.Request().Context()

	wallet := c.QueryParam("wallet")
	if wallet == "" {
		wallet, _ = middleware.Viewer(ctx)
	}
	if !pinjaman.IsAddress(wallet) {
		return presenter.BadRequestMessage(c, "wallet parameter is required")
	}
	if h.signal == nil {
		return presenter.Error(c, domain.GatewayUnavailableError{Gateway: "event bus"})
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer func() {
		ws.Close()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := h.signal.Subscribe(ctx, usecase.WalletChannel(wallet))
	if err != nil {
		slog.ErrorContext(
			ctx, "Failed to subscribe",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return nil
	}

	quit := make(chan struct{})

	go func() {
		defer close(quit)
		for {
			var req Request
			err := ws.ReadJSON(&req)
			if err != nil {
				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}
				return
			}

			switch req.Type {
			case "h": // heartbeat
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := ws.WriteJSON(event); err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
