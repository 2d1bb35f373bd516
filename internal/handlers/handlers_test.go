package handlers

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"reizoko/internal/auth"
	"reizoko/internal/calendar"
	"reizoko/internal/models"
	"reizoko/internal/presence"
	"reizoko/internal/store"
)

func newTestHandlers(t *testing.T) (*Handlers, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	tracker := presence.New(time.Minute)
	t.Cleanup(tracker.Shutdown)
	h := New(mem, calendar.NewCache(), auth.New("test-secret"), tracker)
	return h, mem
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), into); err != nil {
		t.Fatalf("bad response body %q: %v", w.Body.String(), err)
	}
}

func TestCreateRoomAndExists(t *testing.T) {
	h, _ := newTestHandlers(t)

	w := doJSON(t, h.CreateRoom, http.MethodPost, "/api/rooms", `{"id":"fam-2024"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, h.Rooms, http.MethodGet, "/api/rooms/fam-2024/exists", "")
	var resp map[string]bool
	decode(t, w, &resp)
	if !resp["exists"] {
		t.Fatal("created room reported missing")
	}

	w = doJSON(t, h.Rooms, http.MethodGet, "/api/rooms/other-room/exists", "")
	decode(t, w, &resp)
	if resp["exists"] {
		t.Fatal("unknown room reported present")
	}
}

func TestCreateRoomRejectsBadCodes(t *testing.T) {
	h, _ := newTestHandlers(t)

	for _, code := range []string{"ab", "has space", "way!", strings.Repeat("x", 33)} {
		w := doJSON(t, h.CreateRoom, http.MethodPost, "/api/rooms", `{"id":"`+code+`"}`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("code %q accepted with %d", code, w.Code)
		}
	}
}

func TestCreateSessionSetsCookie(t *testing.T) {
	h, _ := newTestHandlers(t)

	w := doJSON(t, h.Session, http.MethodPost, "/api/session", `{"name":"rin","iconId":"cat"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create session: %d %s", w.Code, w.Body.String())
	}

	var resp map[string]string
	decode(t, w, &resp)
	if resp["userId"] == "" || resp["name"] != "rin" {
		t.Fatalf("session response %v", resp)
	}

	cookies := w.Result().Cookies()
	var found *http.Cookie
	for _, c := range cookies {
		if c.Name == auth.CookieName {
			found = c
		}
	}
	if found == nil {
		t.Fatal("no session cookie set")
	}
	if !found.HttpOnly {
		t.Fatal("session cookie readable from scripts")
	}
}

func TestCreateSessionRequiresName(t *testing.T) {
	h, _ := newTestHandlers(t)
	w := doJSON(t, h.Session, http.MethodPost, "/api/session", `{"iconId":"cat"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got %d", w.Code)
	}
}

func TestCreateNoteNormalizesOnWrite(t *testing.T) {
	h, mem := newTestHandlers(t)

	w := doJSON(t, h.Rooms, http.MethodPost, "/api/rooms/r1/notes",
		`{"text":"hi","fontSize":400,"imageUrl":"a.png","imageScale":9,"color":"nope"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create note: %d %s", w.Code, w.Body.String())
	}

	records, _ := mem.GetAll("r1", models.CollectionNotes)
	if len(records) != 1 {
		t.Fatalf("stored %d records", len(records))
	}
	note := models.NoteFromRecord(records[0])
	if note.ID == "" || note.CreatedAt == 0 {
		t.Fatalf("identity not stamped: %+v", note)
	}
	if note.FontSize < models.MinFontSize || note.FontSize > models.MaxFontSize {
		t.Fatalf("fontSize %d out of range", note.FontSize)
	}
	if note.ImageScale < models.MinImageScale || note.ImageScale > models.MaxImageScale {
		t.Fatalf("imageScale %v out of range", note.ImageScale)
	}
	if note.Color != models.DefaultColor {
		t.Fatalf("unknown color kept: %q", note.Color)
	}
}

func TestPatchStripsIdentityAndClamps(t *testing.T) {
	h, mem := newTestHandlers(t)
	mem.SetByID("r1", models.CollectionNotes, "n1", store.Record{
		"id": "n1", "text": "hi", "fontSize": 16, "createdAt": int64(1000),
	})

	w := doJSON(t, h.Rooms, http.MethodPatch, "/api/rooms/r1/notes/n1",
		`{"id":"evil","createdAt":9,"fontSize":400,"color":"nope"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("patch: %d %s", w.Code, w.Body.String())
	}

	records, _ := mem.GetAll("r1", models.CollectionNotes)
	rec := records[0]
	if rec["id"] != "n1" || models.Millis(rec["createdAt"]) != 1000 {
		t.Fatalf("identity rewritten: %v", rec)
	}
	if asFloat(rec["fontSize"]) != models.MaxFontSize {
		t.Fatalf("fontSize not clamped: %v", rec["fontSize"])
	}
	if rec["color"] != models.DefaultColor {
		t.Fatalf("color not defaulted: %v", rec["color"])
	}
}

func TestDeleteDocumentIsIdempotent(t *testing.T) {
	h, mem := newTestHandlers(t)
	mem.SetByID("r1", models.CollectionNotes, "n1", store.Record{"id": "n1", "createdAt": int64(1)})

	for i := 0; i < 2; i++ {
		w := doJSON(t, h.Rooms, http.MethodDelete, "/api/rooms/r1/notes/n1", "")
		if w.Code != http.StatusNoContent {
			t.Fatalf("delete attempt %d: %d", i+1, w.Code)
		}
	}
}

func TestUnknownCollectionIs404(t *testing.T) {
	h, _ := newTestHandlers(t)
	w := doJSON(t, h.Rooms, http.MethodGet, "/api/rooms/r1/gadgets", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("got %d", w.Code)
	}
}

func TestOccurrencesExpandsAndCaches(t *testing.T) {
	h, mem := newTestHandlers(t)
	mem.SetByID("r1", models.CollectionEvents, "e1", store.Record{
		"id": "e1", "title": "trash day", "date": "2024-01-01",
		"recurring": "weekly", "endDate": "2024-01-31", "createdAt": int64(1),
	})

	w := doJSON(t, h.Rooms, http.MethodGet,
		"/api/rooms/r1/occurrences?start=2024-01-01&end=2024-01-22", "")
	if w.Code != http.StatusOK {
		t.Fatalf("occurrences: %d %s", w.Code, w.Body.String())
	}
	var occ []models.EventOccurrence
	decode(t, w, &occ)
	if len(occ) != 4 {
		t.Fatalf("got %d occurrences", len(occ))
	}

	// Writes that bypass the handlers don't invalidate: the window is served
	// from cache.
	mem.DeleteByID("r1", models.CollectionEvents, "e1")
	w = doJSON(t, h.Rooms, http.MethodGet,
		"/api/rooms/r1/occurrences?start=2024-01-01&end=2024-01-22", "")
	decode(t, w, &occ)
	if len(occ) != 4 {
		t.Fatalf("cached window lost: %d occurrences", len(occ))
	}
}

func TestOccurrencesRequiresWindow(t *testing.T) {
	h, _ := newTestHandlers(t)
	w := doJSON(t, h.Rooms, http.MethodGet, "/api/rooms/r1/occurrences?start=2024-01-01", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got %d", w.Code)
	}
}

func TestEventCreateInvalidatesOccurrenceCache(t *testing.T) {
	h, _ := newTestHandlers(t)

	w := doJSON(t, h.Rooms, http.MethodGet,
		"/api/rooms/r1/occurrences?start=2024-01-01&end=2024-01-31", "")
	var occ []models.EventOccurrence
	decode(t, w, &occ)
	if len(occ) != 0 {
		t.Fatalf("empty room yielded %d occurrences", len(occ))
	}

	w = doJSON(t, h.Rooms, http.MethodPost, "/api/rooms/r1/events",
		`{"title":"dentist","date":"2024-01-10","recurring":"none"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create event: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, h.Rooms, http.MethodGet,
		"/api/rooms/r1/occurrences?start=2024-01-01&end=2024-01-31", "")
	decode(t, w, &occ)
	if len(occ) != 1 || occ[0].Date != "2024-01-10" {
		t.Fatalf("stale window after event create: %+v", occ)
	}
}

func TestCreateRecurringEventDefaultsEndDate(t *testing.T) {
	h, mem := newTestHandlers(t)

	w := doJSON(t, h.Rooms, http.MethodPost, "/api/rooms/r1/events",
		`{"title":"standup","date":"2024-01-01","recurring":"weekly"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create event: %d %s", w.Code, w.Body.String())
	}

	records, _ := mem.GetAll("r1", models.CollectionEvents)
	event := models.EventFromRecord(records[0])
	if event.EndDate != "2024-01-01" {
		t.Fatalf("endDate = %q, want the anchor", event.EndDate)
	}
}

func TestDeleteOccurrenceAddsException(t *testing.T) {
	h, mem := newTestHandlers(t)
	mem.SetByID("r1", models.CollectionEvents, "e1", store.Record{
		"id": "e1", "title": "standup", "date": "2024-01-01",
		"recurring": "daily", "endDate": "2024-01-05", "createdAt": int64(1),
	})

	w := doJSON(t, h.Rooms, http.MethodDelete, "/api/rooms/r1/events/e1/occurrences/2024-01-03", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete occurrence: %d %s", w.Code, w.Body.String())
	}

	records, _ := mem.GetAll("r1", models.CollectionEvents)
	event := models.EventFromRecord(records[0])
	if len(event.ExceptionDates) != 1 || event.ExceptionDates[0] != "2024-01-03" {
		t.Fatalf("exceptionDates = %v", event.ExceptionDates)
	}

	// Deleting the same date again must not duplicate the exception.
	w = doJSON(t, h.Rooms, http.MethodDelete, "/api/rooms/r1/events/e1/occurrences/2024-01-03", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("repeat delete: %d", w.Code)
	}
	records, _ = mem.GetAll("r1", models.CollectionEvents)
	event = models.EventFromRecord(records[0])
	if len(event.ExceptionDates) != 1 {
		t.Fatalf("exception duplicated: %v", event.ExceptionDates)
	}

	w = doJSON(t, h.Rooms, http.MethodGet,
		"/api/rooms/r1/occurrences?start=2024-01-01&end=2024-01-05", "")
	var occ []models.EventOccurrence
	decode(t, w, &occ)
	if len(occ) != 4 {
		t.Fatalf("got %d occurrences after exception", len(occ))
	}
}

func TestDeleteOccurrenceUnknownEvent(t *testing.T) {
	h, _ := newTestHandlers(t)
	w := doJSON(t, h.Rooms, http.MethodDelete, "/api/rooms/r1/events/ghost/occurrences/2024-01-03", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("got %d", w.Code)
	}
}

func TestHeartbeatRequiresSession(t *testing.T) {
	h, _ := newTestHandlers(t)

	w := doJSON(t, h.Rooms, http.MethodPost, "/api/rooms/r1/presence", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous heartbeat: %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/rooms/r1/presence", nil)
	req.Header.Set("X-User-Id", "u1")
	rec := httptest.NewRecorder()
	h.Rooms(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("heartbeat: %d %s", rec.Code, rec.Body.String())
	}
}

func TestMembersRenderIncludesPresence(t *testing.T) {
	h, mem := newTestHandlers(t)
	mem.SetByID("r1", models.CollectionMembers, "u1", store.Record{
		"id": "u1", "name": "rin", "createdAt": int64(1),
	})
	mem.SetByID("r1", models.CollectionMembers, "u2", store.Record{
		"id": "u2", "name": "kai", "createdAt": int64(2),
	})

	req := httptest.NewRequest(http.MethodPost, "/api/rooms/r1/presence", nil)
	req.Header.Set("X-User-Id", "u1")
	h.Rooms(httptest.NewRecorder(), req)

	w := doJSON(t, h.Rooms, http.MethodGet, "/api/rooms/r1/members", "")
	var members []models.Member
	decode(t, w, &members)
	if len(members) != 2 {
		t.Fatalf("got %d members", len(members))
	}
	if !members[0].Online || members[0].ID != "u1" {
		t.Fatalf("heartbeating member offline: %+v", members[0])
	}
	if members[1].Online {
		t.Fatalf("silent member online: %+v", members[1])
	}
}

func TestJoinTwiceUpsertsMembership(t *testing.T) {
	h, mem := newTestHandlers(t)

	for _, name := range []string{"rin", "rin renamed"} {
		req := httptest.NewRequest(http.MethodPost, "/api/rooms/r1/members",
			strings.NewReader(`{"name":"`+name+`"}`))
		req.Header.Set("X-User-Id", "u1")
		rec := httptest.NewRecorder()
		h.Rooms(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("join: %d %s", rec.Code, rec.Body.String())
		}
	}

	records, _ := mem.GetAll("r1", models.CollectionMembers)
	if len(records) != 1 {
		t.Fatalf("joined twice produced %d memberships", len(records))
	}
	if records[0]["name"] != "rin renamed" {
		t.Fatalf("rejoin did not update: %v", records[0])
	}
}

func TestStreamPushesSnapshots(t *testing.T) {
	h, mem := newTestHandlers(t)
	mem.SetByID("r1", models.CollectionNotes, "n1", store.Record{
		"id": "n1", "text": "hi", "createdAt": int64(1),
	})

	srv := httptest.NewServer(http.HandlerFunc(h.Rooms))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/rooms/r1/notes/stream")
	if err != nil {
		t.Fatalf("stream request: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	var payload string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			payload = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	if payload == "" {
		t.Fatal("no data frame received")
	}

	var notes []models.StickyNote
	if err := json.Unmarshal([]byte(payload), &notes); err != nil {
		t.Fatalf("bad frame %q: %v", payload, err)
	}
	if len(notes) != 1 || notes[0].ID != "n1" {
		t.Fatalf("frame contents: %+v", notes)
	}
}
