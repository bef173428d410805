package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cardgame-backend/internal/model"
	"github.com/iliyamo/cardgame-backend/internal/service"
)

// PurchaseHandler records in-app purchases against the ledger.
type PurchaseHandler struct {
	Sessions *service.SessionManager
	Ledger   *service.PurchaseLedger
	Saves    *service.SaveService
	Timeout  time.Duration
}

func NewPurchaseHandler(sessions *service.SessionManager, ledger *service.PurchaseLedger, saves *service.SaveService, timeout time.Duration) *PurchaseHandler {
	return &PurchaseHandler{Sessions: sessions, Ledger: ledger, Saves: saves, Timeout: timeout}
}

type purchaseReq struct {
	SessionID     string `json:"session_id"`
	ProductID     string `json:"product_id"`
	TransactionID string `json:"transaction_id"`
	Receipt       string `json:"receipt"`
	Platform      string `json:"platform"`
}

// Purchase records the transaction (or replays an earlier record) and
// returns the save as it stands afterwards.
func (h *PurchaseHandler) Purchase(c echo.Context) error {
	var req purchaseReq
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := storageCtx(c, h.Timeout)
	defer cancel()

	uid, err := authenticate(ctx, c, h.Sessions, req.SessionID)
	if err != nil {
		return err
	}
	res, err := h.Ledger.Record(ctx, service.PurchaseRequest{
		UserID:        uid,
		TransactionID: req.TransactionID,
		ProductID:     req.ProductID,
		Platform:      req.Platform,
		Receipt:       req.Receipt,
	})
	if err != nil {
		return err
	}
	state, err := h.Saves.Load(ctx, uid)
	if err != nil {
		return err
	}
	rec := res.Record
	return c.JSON(http.StatusOK, echo.Map{
		"success":        true,
		"transaction_id": rec.TransactionID,
		"product_id":     rec.ProductID,
		"platform":       rec.Platform,
		"recorded_at":    timestamp(rec.RecordedAt),
		"replayed":       res.Replayed,
		"game_data":      state.Payload,
		"version":        state.Version,
	})
}

// History lists the caller's recorded purchases, oldest first.
func (h *PurchaseHandler) History(c echo.Context) error {
	var req loadReq
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := storageCtx(c, h.Timeout)
	defer cancel()

	uid, err := authenticate(ctx, c, h.Sessions, req.SessionID)
	if err != nil {
		return err
	}
	recs, err := h.Ledger.History(ctx, uid)
	if err != nil {
		return err
	}
	if recs == nil {
		recs = []model.PurchaseRecord{}
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "purchases": recs})
}
