package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/recycle-ai/recycle/internal/activation"
	"github.com/recycle-ai/recycle/internal/pickup"
)

func (s *Server) handlePickup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.pickup == nil {
		writeError(w, http.StatusServiceUnavailable, "Pickup requests are not configured", "pickup_unavailable")
		return
	}

	release, ok := s.acquire(w)
	if !ok {
		return
	}
	defer release()

	name, data, ok := s.readImage(w, r)
	if !ok {
		return
	}
	req := pickup.Request{
		Filename: name,
		Image:    data,
		ImageURL: strings.TrimSpace(r.FormValue("image_url")),
	}
	if len(req.Image) == 0 && req.ImageURL == "" {
		writeError(w, http.StatusBadRequest, "missing image field", "invalid_request_error")
		return
	}

	userID, _ := s.currentUserID()
	receipt, err := s.pickup.Submit(r.Context(), req)

	payload := &activation.PickupPayload{Hosted: req.ImageURL != ""}
	if receipt != nil {
		payload.Latitude = receipt.Position.Latitude
		payload.Longitude = receipt.Position.Longitude
		payload.Hosted = true
	}
	var pe *pickup.Error
	if errors.As(err, &pe) {
		payload.Stage = string(pe.Stage)
		payload.Hosted = pe.HostedURL != ""
	}
	s.activation.Record(r.Context(), activation.BuildParams{
		Kind:   activation.KindPickupRequested,
		UserID: userID,
		Err:    err,
		Pickup: payload,
	})

	if err != nil {
		writePickupError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func writePickupError(w http.ResponseWriter, err error) {
	var pe *pickup.Error
	if !errors.As(err, &pe) {
		writeError(w, http.StatusInternalServerError, userMessage(err), "pickup_error")
		return
	}

	detail := errorDetail{
		Message:   pe.UserMessage(),
		Type:      "pickup_" + string(pe.Stage) + "_failed",
		HostedURL: pe.HostedURL,
	}
	status := http.StatusBadGateway
	switch {
	case errors.Is(pe, pickup.ErrLocationDenied):
		status = http.StatusForbidden
		detail.Type = "location_denied"
	case errors.Is(pe, pickup.ErrLocationTimeout):
		status = http.StatusGatewayTimeout
		detail.Type = "location_timeout"
	}
	writeErrorDetail(w, status, detail)
}
