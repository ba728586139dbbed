package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"smsbridge-backend/internal/model"
	"smsbridge-backend/internal/service"
	"smsbridge-backend/internal/utils"
)

type ContactHandler struct {
	ContactService *service.ContactService
}

func NewContactHandler(contactService *service.ContactService) *ContactHandler {
	return &ContactHandler{ContactService: contactService}
}

func (h *ContactHandler) GetContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.ContactService.List()
	if err != nil {
		utils.ErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if contacts == nil {
		contacts = []model.Contact{}
	}

	utils.SuccessResponse(w, http.StatusOK, contacts, "")
}

func (h *ContactHandler) AddContact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	contact, err := h.ContactService.Create(strings.TrimSpace(req.Name), strings.TrimSpace(req.Phone))
	if err != nil {
		if errors.Is(err, service.ErrInvalidPhone) {
			utils.ErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		utils.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.SuccessResponse(w, http.StatusOK, map[string]interface{}{"contact": contact}, "")
}

func (h *ContactHandler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	if strings.TrimSpace(id) == "" {
		utils.ErrorResponse(w, http.StatusBadRequest, "Invalid contact id")
		return
	}

	if err := h.ContactService.Delete(id); err != nil {
		utils.ErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.SuccessResponse(w, http.StatusOK, nil, "Contact deleted")
}

func (h *ContactHandler) ImportContacts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Contacts []model.Contact `json:"contacts"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	count, err := h.ContactService.Import(req.Contacts)
	if err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.SuccessResponse(w, http.StatusOK, map[string]interface{}{"imported_count": count},
		"Contacts imported successfully")
}
