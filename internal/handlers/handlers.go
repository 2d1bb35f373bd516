package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"reizoko/internal/auth"
	"reizoko/internal/calendar"
	"reizoko/internal/models"
	"reizoko/internal/presence"
	"reizoko/internal/store"
)

var roomCodePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,32}$`)

type Handlers struct {
	store    store.Store
	cache    *calendar.Cache
	auth     *auth.Auth
	presence *presence.Tracker
}

func New(st store.Store, cache *calendar.Cache, a *auth.Auth, p *presence.Tracker) *Handlers {
	return &Handlers{
		store:    st,
		cache:    cache,
		auth:     a,
		presence: p,
	}
}

func (h *Handlers) respond(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func (h *Handlers) error(w http.ResponseWriter, message string, status int) {
	h.respond(w, map[string]string{"error": message}, status)
}

// Session
func (h *Handlers) Session(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createSession(w, r)
	case http.MethodGet:
		h.checkSession(w, r)
	default:
		h.error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handlers) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string `json:"name"`
		IconID string `json:"iconId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		h.error(w, "Name is required", http.StatusBadRequest)
		return
	}

	token, userID, err := h.auth.GrantSession(req.Name, req.IconID)
	if err != nil {
		h.error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   90 * 24 * 60 * 60, // 3 months
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	h.respond(w, map[string]string{
		"userId": userID,
		"name":   req.Name,
		"iconId": req.IconID,
	}, http.StatusCreated)
}

func (h *Handlers) checkSession(w http.ResponseWriter, r *http.Request) {
	userID, name, iconID := auth.Identity(r)
	if userID == "" {
		h.respond(w, map[string]bool{"authenticated": false}, http.StatusOK)
		return
	}
	h.respond(w, map[string]string{
		"userId": userID,
		"name":   name,
		"iconId": iconID,
	}, http.StatusOK)
}

// Rooms
func (h *Handlers) CreateRoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !roomCodePattern.MatchString(req.ID) {
		h.error(w, "Invalid room code", http.StatusBadRequest)
		return
	}

	if err := h.store.CreateRoom(req.ID); err != nil {
		h.error(w, "Failed to create room", http.StatusInternalServerError)
		return
	}

	h.respond(w, map[string]string{"id": req.ID}, http.StatusCreated)
}

// Rooms dispatches everything under /api/rooms/{room}/...
func (h *Handlers) Rooms(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/rooms"), "/")
	parts := strings.Split(rest, "/")
	if rest == "" || parts[0] == "" {
		h.error(w, "Room is required", http.StatusBadRequest)
		return
	}
	roomID := parts[0]
	if !roomCodePattern.MatchString(roomID) {
		h.error(w, "Invalid room code", http.StatusBadRequest)
		return
	}

	switch {
	case len(parts) == 2 && parts[1] == "exists":
		h.roomExists(w, r, roomID)
	case len(parts) == 2 && parts[1] == "occurrences":
		h.occurrences(w, r, roomID)
	case len(parts) == 2 && parts[1] == "presence":
		h.heartbeat(w, r, roomID)
	case len(parts) == 5 && parts[1] == models.CollectionEvents && parts[3] == "occurrences":
		h.deleteOccurrence(w, r, roomID, parts[2], parts[4])
	case len(parts) == 2:
		h.collection(w, r, roomID, parts[1])
	case len(parts) == 3 && parts[2] == "stream":
		h.stream(w, r, roomID, parts[1])
	case len(parts) == 3:
		h.document(w, r, roomID, parts[1], parts[2])
	default:
		h.error(w, "Not found", http.StatusNotFound)
	}
}

func (h *Handlers) roomExists(w http.ResponseWriter, r *http.Request, roomID string) {
	if r.Method != http.MethodGet {
		h.error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	exists, err := h.store.Exists(roomID)
	if err != nil {
		h.error(w, "Failed to check room", http.StatusInternalServerError)
		return
	}
	h.respond(w, map[string]bool{"exists": exists}, http.StatusOK)
}

func (h *Handlers) heartbeat(w http.ResponseWriter, r *http.Request, roomID string) {
	if r.Method != http.MethodPost {
		h.error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, _, _ := auth.Identity(r)
	if userID == "" {
		h.error(w, "Session required", http.StatusUnauthorized)
		return
	}
	h.presence.Heartbeat(roomID, userID)
	h.respond(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// Collections
func (h *Handlers) collection(w http.ResponseWriter, r *http.Request, roomID, collection string) {
	if !models.ValidCollection(collection) {
		h.error(w, "Unknown collection", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		records, err := h.store.GetAll(roomID, collection)
		if err != nil {
			h.error(w, "Failed to get records", http.StatusInternalServerError)
			return
		}
		h.respond(w, h.render(roomID, collection, records), http.StatusOK)
	case http.MethodPost:
		h.createDocument(w, r, roomID, collection)
	default:
		h.error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handlers) createDocument(w http.ResponseWriter, r *http.Request, roomID, collection string) {
	var rec store.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		h.error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	id := uuid.NewString()
	if collection == models.CollectionMembers {
		// Joining twice upserts the same membership.
		if userID, _, _ := auth.Identity(r); userID != "" {
			id = userID
		}
	}
	rec["id"] = id
	if models.Millis(rec["createdAt"]) == 0 {
		rec["createdAt"] = time.Now().UnixMilli()
	}

	rec = h.normalize(collection, rec)

	if err := h.store.SetByID(roomID, collection, id, rec); err != nil {
		h.error(w, "Failed to create record", http.StatusInternalServerError)
		return
	}

	h.invalidate(roomID, collection)
	h.respond(w, rec, http.StatusCreated)
}

func (h *Handlers) document(w http.ResponseWriter, r *http.Request, roomID, collection, id string) {
	if !models.ValidCollection(collection) {
		h.error(w, "Unknown collection", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		rec, ok := h.find(roomID, collection, id)
		if !ok {
			h.error(w, "Record not found", http.StatusNotFound)
			return
		}
		h.respond(w, rec, http.StatusOK)
	case http.MethodPatch:
		var fields store.Record
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			h.error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		// Identity and provenance never change after creation.
		delete(fields, "id")
		delete(fields, "createdAt")
		fields = h.clampFields(collection, fields)

		if err := h.store.UpdateFields(roomID, collection, id, fields); err != nil {
			h.error(w, "Failed to update record", http.StatusInternalServerError)
			return
		}
		h.invalidate(roomID, collection)
		h.respond(w, map[string]string{"status": "ok"}, http.StatusOK)
	case http.MethodPut:
		var rec store.Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			h.error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		rec["id"] = id
		if models.Millis(rec["createdAt"]) == 0 {
			rec["createdAt"] = time.Now().UnixMilli()
		}
		rec = h.normalize(collection, rec)

		if err := h.store.SetByID(roomID, collection, id, rec); err != nil {
			h.error(w, "Failed to set record", http.StatusInternalServerError)
			return
		}
		h.invalidate(roomID, collection)
		h.respond(w, rec, http.StatusOK)
	case http.MethodDelete:
		if err := h.store.DeleteByID(roomID, collection, id); err != nil {
			h.error(w, "Failed to delete record", http.StatusInternalServerError)
			return
		}
		h.invalidate(roomID, collection)
		h.respond(w, nil, http.StatusNoContent)
	default:
		h.error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Calendar
func (h *Handlers) occurrences(w http.ResponseWriter, r *http.Request, roomID string) {
	if r.Method != http.MethodGet {
		h.error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")
	if start == "" || end == "" {
		h.error(w, "start and end are required", http.StatusBadRequest)
		return
	}

	if cached, ok := h.cache.Get(roomID, start, end); ok {
		h.respond(w, cached, http.StatusOK)
		return
	}

	records, err := h.store.GetAll(roomID, models.CollectionEvents)
	if err != nil {
		h.error(w, "Failed to get events", http.StatusInternalServerError)
		return
	}

	events := make([]models.CalendarEvent, 0, len(records))
	for _, rec := range records {
		events = append(events, models.EventFromRecord(rec))
	}

	occurrences := calendar.Expand(events, start, end)
	if occurrences == nil {
		occurrences = []models.EventOccurrence{}
	}
	h.cache.Set(roomID, start, end, occurrences)
	h.respond(w, occurrences, http.StatusOK)
}

// deleteOccurrence suppresses a single date of a recurring series by adding
// it to the event's exception list. The event itself survives.
func (h *Handlers) deleteOccurrence(w http.ResponseWriter, r *http.Request, roomID, eventID, date string) {
	if r.Method != http.MethodDelete {
		h.error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rec, ok := h.find(roomID, models.CollectionEvents, eventID)
	if !ok {
		h.error(w, "Event not found", http.StatusNotFound)
		return
	}

	event := models.EventFromRecord(rec)
	for _, d := range event.ExceptionDates {
		if d == date {
			h.respond(w, nil, http.StatusNoContent)
			return
		}
	}
	exceptions := append(event.ExceptionDates, date)

	if err := h.store.UpdateFields(roomID, models.CollectionEvents, eventID,
		store.Record{"exceptionDates": exceptions}); err != nil {
		h.error(w, "Failed to update event", http.StatusInternalServerError)
		return
	}

	h.invalidate(roomID, models.CollectionEvents)
	h.respond(w, nil, http.StatusNoContent)
}

// stream pushes the collection's full snapshot as a server-sent event after
// every change.
func (h *Handlers) stream(w http.ResponseWriter, r *http.Request, roomID, collection string) {
	if !models.ValidCollection(collection) {
		h.error(w, "Unknown collection", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet {
		h.error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	snapshots := make(chan []store.Record, 8)
	unsubscribe := h.store.Subscribe(roomID, collection,
		func(snapshot []store.Record) {
			select {
			case snapshots <- snapshot:
			default:
				// A slow consumer only ever misses intermediate snapshots;
				// the next delivery carries the full state anyway.
			}
		},
		nil)
	defer unsubscribe()

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case snapshot := <-snapshots:
			data, err := json.Marshal(h.render(roomID, collection, snapshot))
			if err != nil {
				continue
			}
			w.Write([]byte("data: "))
			w.Write(data)
			w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-heartbeat.C:
			w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		}
	}
}

// render normalizes raw documents into the shape clients consume.
func (h *Handlers) render(roomID, collection string, records []store.Record) interface{} {
	switch collection {
	case models.CollectionNotes:
		notes := make([]models.StickyNote, 0, len(records))
		for _, rec := range records {
			notes = append(notes, models.NoteFromRecord(rec))
		}
		return notes
	case models.CollectionEvents:
		events := make([]models.CalendarEvent, 0, len(records))
		for _, rec := range records {
			events = append(events, models.EventFromRecord(rec))
		}
		return events
	case models.CollectionMembers:
		members := make([]models.Member, 0, len(records))
		for _, rec := range records {
			m := models.MemberFromRecord(rec)
			m.Online = h.presence.Online(roomID, m.ID)
			members = append(members, m)
		}
		return members
	}
	if records == nil {
		records = []store.Record{}
	}
	return records
}

// normalize runs the write-path boundary rules for a full record.
func (h *Handlers) normalize(collection string, rec store.Record) store.Record {
	switch collection {
	case models.CollectionNotes:
		note := models.NoteFromRecord(rec)
		note.Clamp()
		return note.Record()
	case models.CollectionEvents:
		event := models.EventFromRecord(rec)
		if event.Recurring != models.RecurNone && event.EndDate == "" {
			event.EndDate = event.Date
		}
		return event.Record()
	}
	return rec
}

// clampFields applies the note clamps to a partial update without touching
// fields the caller didn't supply.
func (h *Handlers) clampFields(collection string, fields store.Record) store.Record {
	if collection != models.CollectionNotes {
		return fields
	}

	if v, ok := fields["fontSize"]; ok {
		size := int(asFloat(v))
		if size < models.MinFontSize {
			size = models.MinFontSize
		}
		if size > models.MaxFontSize {
			size = models.MaxFontSize
		}
		fields["fontSize"] = size
	}
	if v, ok := fields["imageScale"]; ok {
		scale := asFloat(v)
		if scale < models.MinImageScale {
			scale = models.MinImageScale
		}
		if scale > models.MaxImageScale {
			scale = models.MaxImageScale
		}
		fields["imageScale"] = scale
	}
	if v, ok := fields["color"]; ok {
		if name, _ := v.(string); !models.ValidColor(name) {
			fields["color"] = models.DefaultColor
		}
	}
	return fields
}

func (h *Handlers) find(roomID, collection, id string) (store.Record, bool) {
	records, err := h.store.GetAll(roomID, collection)
	if err != nil {
		return nil, false
	}
	for _, rec := range records {
		if rec["id"] == id {
			return rec, true
		}
	}
	return nil, false
}

func (h *Handlers) invalidate(roomID, collection string) {
	if collection == models.CollectionEvents {
		h.cache.InvalidateRoom(roomID)
	}
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	}
	return 0
}
