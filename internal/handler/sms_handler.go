package handler

import (
	"net/http"
	"strings"

	"smsbridge-backend/internal/applescript"
	"smsbridge-backend/internal/model"
	"smsbridge-backend/internal/service"
	"smsbridge-backend/internal/utils"
)

type SMSHandler struct {
	SMSService *service.SMSService
	Bridge     *applescript.Bridge
}

func NewSMSHandler(smsService *service.SMSService, bridge *applescript.Bridge) *SMSHandler {
	return &SMSHandler{SMSService: smsService, Bridge: bridge}
}

func (h *SMSHandler) SendSMS(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Recipients []model.Recipient `json:"recipients"`
		Message    string            `json:"message"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		utils.ErrorResponse(w, http.StatusBadRequest, "Message text is required")
		return
	}
	if len(req.Recipients) == 0 {
		utils.ErrorResponse(w, http.StatusBadRequest, "At least one recipient is required")
		return
	}

	report, err := h.SMSService.Send(r.Context(), req.Recipients, message)
	if err != nil {
		utils.ErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.SuccessResponse(w, http.StatusOK, report, "")
}

func (h *SMSHandler) TestAppleScript(w http.ResponseWriter, r *http.Request) {
	diag, err := h.Bridge.Test(r.Context())
	if err != nil {
		utils.ErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.SuccessResponse(w, http.StatusOK, diag, "")
}
