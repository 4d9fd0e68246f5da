package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/mbodji/lendscan/internal/service/eventctx"
	"github.com/mbodji/lendscan/internal/service/scan"
	"github.com/mbodji/lendscan/internal/service/tracking"
	"github.com/mbodji/lendscan/pkg/clients/barcode"
)

// ScanHandler feeds typed and camera-decoded codes through the shared
// resolution path and drives the pending-action lifecycle.
type ScanHandler struct {
	scans   *scan.Service
	events  *eventctx.Manager
	decoder barcode.Client
	logger  *zap.Logger
}

// NewScanHandler constructs the HTTP handler adapter.
func NewScanHandler(scans *scan.Service, events *eventctx.Manager, decoder barcode.Client, logger *zap.Logger) *ScanHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScanHandler{scans: scans, events: events, decoder: decoder, logger: logger}
}

type scanRequest struct {
	Code string `json:"code" binding:"required"`
}

type pickRequest struct {
	ControlID string `json:"controlId" binding:"required"`
}

type tokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// Scan resolves a typed or externally decoded code.
func (h *ScanHandler) Scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	h.resolve(c, req.Code)
}

// ScanImage uploads one captured frame to the decoding API and runs each
// decoded value through the same resolution path as typed input. The first
// value that resolves (or matches ambiguously) wins.
func (h *ScanHandler) ScanImage(c *gin.Context) {
	eventID, ok := h.events.Selected()
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "no event selected"})
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing image file"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable image file"})
		return
	}
	defer file.Close()

	codes, err := h.decoder.Decode(c.Request.Context(), fileHeader.Filename, file)
	if err != nil {
		h.logger.Error("barcode decoding failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "barcode decoding failed"})
		return
	}
	if len(codes) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no barcode detected"})
		return
	}

	for _, code := range codes {
		res, err := h.scans.Resolve(c.Request.Context(), eventID, code)
		if errors.Is(err, scan.ErrCodeNotFound) || errors.Is(err, scan.ErrEmptyCode) {
			continue
		}
		if err != nil {
			h.respondScanError(c, err)
			return
		}
		h.respondResolution(c, res)
		return
	}

	c.JSON(http.StatusNotFound, gin.H{"error": "no decoded value matches an item in the selected event"})
}

// Pick arms the pending action for one record chosen out of an ambiguous
// candidate set.
func (h *ScanHandler) Pick(c *gin.Context) {
	var req pickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	controlID, err := primitive.ObjectIDFromHex(req.ControlID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid control identifier"})
		return
	}

	snap, err := h.scans.Pick(controlID)
	if err != nil {
		if errors.Is(err, scan.ErrUnknownCandidate) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.respondScanError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"outcome": "pending", "pending": snap})
}

// Pending reports the countdown state of the pending action.
func (h *ScanHandler) Pending(c *gin.Context) {
	snap, ok := h.scans.Pending()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"active": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": true, "pending": snap})
}

// Confirm commits the pending action before its window expires.
func (h *ScanHandler) Confirm(c *gin.Context) {
	token, ok := h.bindToken(c)
	if !ok {
		return
	}

	record, err := h.scans.Confirm(c.Request.Context(), token)
	if err != nil {
		h.respondScanError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": record})
}

// Cancel discards the pending action without mutating anything.
func (h *ScanHandler) Cancel(c *gin.Context) {
	token, ok := h.bindToken(c)
	if !ok {
		return
	}

	snap, err := h.scans.Cancel(token)
	if err != nil {
		h.respondScanError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": snap})
}

// ReLoan commits a pending return and loans the item out again in one step.
func (h *ScanHandler) ReLoan(c *gin.Context) {
	token, ok := h.bindToken(c)
	if !ok {
		return
	}

	record, err := h.scans.ReLoan(c.Request.Context(), token)
	if err != nil {
		h.respondScanError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": record})
}

func (h *ScanHandler) resolve(c *gin.Context, code string) {
	eventID, ok := h.events.Selected()
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "no event selected"})
		return
	}

	res, err := h.scans.Resolve(c.Request.Context(), eventID, code)
	if err != nil {
		h.respondScanError(c, err)
		return
	}
	h.respondResolution(c, res)
}

func (h *ScanHandler) respondResolution(c *gin.Context, res scan.Resolution) {
	if len(res.Ambiguous) > 0 {
		c.JSON(http.StatusOK, gin.H{"outcome": "ambiguous", "candidates": res.Ambiguous})
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcome": "pending", "pending": res.Pending})
}

// respondScanError maps domain errors onto transient-notification responses.
func (h *ScanHandler) respondScanError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, scan.ErrEmptyCode):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, scan.ErrCodeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, scan.ErrNoPendingAction), errors.Is(err, scan.ErrStalePendingToken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, scan.ErrReLoanNotAllowed):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, tracking.ErrActionInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, tracking.ErrAlreadyLoaned), errors.Is(err, tracking.ErrNotLoaned),
		errors.Is(err, tracking.ErrMissingRecordID):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, tracking.ErrPartialReLoan):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "partial": true})
	default:
		h.logger.Error("scan operation failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "store operation failed"})
	}
}

func (h *ScanHandler) bindToken(c *gin.Context) (uuid.UUID, bool) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return uuid.UUID{}, false
	}

	token, err := uuid.Parse(req.Token)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid token"})
		return uuid.UUID{}, false
	}
	return token, true
}
