package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/hotelier-system/internal/model"
)

const dateLayout = "2006-01-02"

func parseID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func parseDate(value string) (time.Time, bool) {
	t, err := time.Parse(dateLayout, value)
	return t, err == nil
}

type roomRequest struct {
	Number      string   `json:"number"`
	Type        string   `json:"type"`
	Price       float64  `json:"price"`
	Capacity    int      `json:"capacity"`
	Amenities   []string `json:"amenities"`
	Description string   `json:"description"`
	IsActive    *bool    `json:"is_active"`
	Status      string   `json:"status"`
}

type roomResponse struct {
	ID            int64    `json:"id"`
	Number        string   `json:"number"`
	Type          string   `json:"type"`
	Price         float64  `json:"price"`
	Capacity      int      `json:"capacity"`
	Amenities     []string `json:"amenities"`
	Description   string   `json:"description"`
	IsActive      bool     `json:"is_active"`
	Status        string   `json:"status"`
	NextAvailable *string  `json:"next_available,omitempty"`
}

func toRoomResponse(rm model.Room, status model.RoomStatus, next *time.Time) roomResponse {
	resp := roomResponse{
		ID:          rm.ID,
		Number:      rm.Number,
		Type:        rm.Type,
		Price:       float64(rm.PriceCents) / 100,
		Capacity:    rm.Capacity,
		Amenities:   rm.Amenities,
		Description: rm.Description,
		IsActive:    rm.IsActive,
		Status:      string(status),
	}
	if next != nil {
		v := next.Format(dateLayout)
		resp.NextAvailable = &v
	}
	return resp
}

func validRoomStatus(s string) bool {
	switch model.RoomStatus(s) {
	case model.RoomStatusAvailable, model.RoomStatusOccupied, model.RoomStatusMaintenance:
		return true
	}
	return false
}

// CreateRoom создаёт номер отеля.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	if req.Number == "" || req.Price <= 0 || req.Capacity <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "number, price and capacity are required")
		return
	}
	if req.Status != "" && !validRoomStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown room status")
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	rm := &model.Room{
		Number:      req.Number,
		Type:        req.Type,
		PriceCents:  int64(req.Price * 100),
		Capacity:    req.Capacity,
		Amenities:   req.Amenities,
		Description: req.Description,
		IsActive:    isActive,
		Status:      model.RoomStatus(req.Status),
	}

	id, err := h.service.CreateRoom(r.Context(), rm)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	rm.ID = id

	writeData(w, http.StatusCreated, toRoomResponse(*rm, rm.Status, nil))
}

// ListRooms возвращает все номера с живой проекцией статуса.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.service.ListRoomsWithStatus(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := make([]roomResponse, 0, len(rooms))
	for _, rs := range rooms {
		resp = append(resp, toRoomResponse(rs.Room, rs.Status, rs.NextAvailable))
	}
	writeData(w, http.StatusOK, resp)
}

// GetRoom возвращает номер по идентификатору.
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid room id")
		return
	}

	rs, err := h.service.GetRoomWithStatus(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, toRoomResponse(rs.Room, rs.Status, rs.NextAvailable))
}

// UpdateRoom обновляет номер отеля.
func (h *Handler) UpdateRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid room id")
		return
	}

	var req roomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if req.Number == "" || req.Price <= 0 || req.Capacity <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "number, price and capacity are required")
		return
	}
	if req.Status != "" && !validRoomStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown room status")
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	rm := &model.Room{
		ID:          id,
		Number:      req.Number,
		Type:        req.Type,
		PriceCents:  int64(req.Price * 100),
		Capacity:    req.Capacity,
		Amenities:   req.Amenities,
		Description: req.Description,
		IsActive:    isActive,
		Status:      model.RoomStatus(req.Status),
	}

	if err := h.service.UpdateRoom(r.Context(), rm); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, toRoomResponse(*rm, rm.Status, nil))
}

// DeleteRoom удаляет номер отеля.
func (h *Handler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid room id")
		return
	}

	if err := h.service.DeleteRoom(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type availableRoomResponse struct {
	Room       roomResponse `json:"room"`
	Nights     int          `json:"nights"`
	TotalPrice float64      `json:"total_price"`
}

// SearchAvailability возвращает номера, свободные на запрошенный интервал.
func (h *Handler) SearchAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	checkIn, okIn := parseDate(q.Get("check_in"))
	checkOut, okOut := parseDate(q.Get("check_out"))
	if !okIn || !okOut {
		writeError(w, http.StatusBadRequest, "invalid_request", "check_in and check_out must be YYYY-MM-DD dates")
		return
	}

	guests := 0
	if raw := q.Get("guests"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "guests must be a positive number")
			return
		}
		guests = v
	}

	rooms, err := h.service.SearchAvailability(r.Context(), checkIn, checkOut, guests)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := make([]availableRoomResponse, 0, len(rooms))
	for _, ar := range rooms {
		resp = append(resp, availableRoomResponse{
			Room:       toRoomResponse(ar.Room, ar.Room.Status, nil),
			Nights:     ar.Nights,
			TotalPrice: float64(ar.TotalPriceCents) / 100,
		})
	}
	writeData(w, http.StatusOK, resp)
}
