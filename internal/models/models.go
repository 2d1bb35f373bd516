package models

// Collection names under a room.
const (
	CollectionNotes    = "notes"
	CollectionEvents   = "events"
	CollectionExpenses = "expenses"
	CollectionChores   = "chores"
	CollectionMembers  = "members"
)

var Collections = []string{
	CollectionNotes,
	CollectionEvents,
	CollectionExpenses,
	CollectionChores,
	CollectionMembers,
}

func ValidCollection(name string) bool {
	for _, c := range Collections {
		if c == name {
			return true
		}
	}
	return false
}

// Sticky note limits. Writes clamp into these ranges, reads fall back to the
// defaults when a stored value is out of range.
const (
	MinFontSize     = 10
	MaxFontSize     = 48
	DefaultFontSize = 16

	MinImageScale     = 0.25
	MaxImageScale     = 3.0
	DefaultImageScale = 1.0

	// Base dimensions of a note; imageScale multiplies these.
	NoteBaseWidth  = 224.0
	NoteBaseHeight = 200.0
)

type NoteColor struct {
	Name       string `json:"name"`
	Background string `json:"background"`
	Border     string `json:"border"`
}

// Palette is the fixed set of note backgrounds with their paired borders.
var Palette = []NoteColor{
	{"yellow", "#fef9c3", "#facc15"},
	{"orange", "#ffedd5", "#fb923c"},
	{"red", "#fee2e2", "#f87171"},
	{"pink", "#fce7f3", "#f472b6"},
	{"purple", "#f3e8ff", "#c084fc"},
	{"blue", "#dbeafe", "#60a5fa"},
	{"sky", "#e0f2fe", "#38bdf8"},
	{"green", "#dcfce7", "#4ade80"},
	{"teal", "#ccfbf1", "#2dd4bf"},
	{"gray", "#f3f4f6", "#9ca3af"},
}

const DefaultColor = "yellow"

func ValidColor(name string) bool {
	for _, c := range Palette {
		if c.Name == name {
			return true
		}
	}
	return false
}

type StickyNote struct {
	ID           string  `json:"id"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Text         string  `json:"text"`
	Color        string  `json:"color"`
	ImageURL     string  `json:"imageUrl,omitempty"`
	ImageScale   float64 `json:"imageScale,omitempty"`
	FontSize     int     `json:"fontSize"`
	Rotation     float64 `json:"rotation,omitempty"`
	FontWeight   string  `json:"fontWeight"`
	FontStyle    string  `json:"fontStyle"`
	ListStyle    string  `json:"listStyle"`
	CreatedAt    int64   `json:"createdAt"`
	AuthorName   string  `json:"authorName,omitempty"`
	AuthorIconID string  `json:"authorIconId,omitempty"`
}

// Clamp forces numeric style fields into their persistable ranges and fills
// empty enums with defaults. Applied on every write path.
func (n *StickyNote) Clamp() {
	if n.FontSize < MinFontSize {
		n.FontSize = MinFontSize
	}
	if n.FontSize > MaxFontSize {
		n.FontSize = MaxFontSize
	}
	if n.ImageScale != 0 {
		if n.ImageScale < MinImageScale {
			n.ImageScale = MinImageScale
		}
		if n.ImageScale > MaxImageScale {
			n.ImageScale = MaxImageScale
		}
	}
	if !ValidColor(n.Color) {
		n.Color = DefaultColor
	}
	if n.FontWeight != "bold" {
		n.FontWeight = "normal"
	}
	if n.FontStyle != "italic" {
		n.FontStyle = "normal"
	}
	if n.ListStyle != "bullet" {
		n.ListStyle = "none"
	}
}

func (n StickyNote) Record() map[string]any {
	rec := map[string]any{
		"id":         n.ID,
		"x":          n.X,
		"y":          n.Y,
		"text":       n.Text,
		"color":      n.Color,
		"fontSize":   n.FontSize,
		"fontWeight": n.FontWeight,
		"fontStyle":  n.FontStyle,
		"listStyle":  n.ListStyle,
		"createdAt":  n.CreatedAt,
	}
	if n.ImageURL != "" {
		rec["imageUrl"] = n.ImageURL
		rec["imageScale"] = n.ImageScale
	}
	if n.Rotation != 0 {
		rec["rotation"] = n.Rotation
	}
	if n.AuthorName != "" {
		rec["authorName"] = n.AuthorName
	}
	if n.AuthorIconID != "" {
		rec["authorIconId"] = n.AuthorIconID
	}
	return rec
}

// NoteFromRecord normalizes a raw stored document into a StickyNote. Malformed
// or missing fields become defaults, never errors.
func NoteFromRecord(rec map[string]any) StickyNote {
	n := StickyNote{
		ID:           str(rec["id"]),
		X:            num(rec["x"]),
		Y:            num(rec["y"]),
		Text:         str(rec["text"]),
		Color:        str(rec["color"]),
		ImageURL:     str(rec["imageUrl"]),
		Rotation:     num(rec["rotation"]),
		FontWeight:   str(rec["fontWeight"]),
		FontStyle:    str(rec["fontStyle"]),
		ListStyle:    str(rec["listStyle"]),
		CreatedAt:    Millis(rec["createdAt"]),
		AuthorName:   str(rec["authorName"]),
		AuthorIconID: str(rec["authorIconId"]),
	}
	n.FontSize = normalizeFontSize(rec["fontSize"])
	if n.ImageURL != "" {
		n.ImageScale = normalizeImageScale(rec["imageScale"])
	}
	if !ValidColor(n.Color) {
		n.Color = DefaultColor
	}
	if n.FontWeight != "bold" {
		n.FontWeight = "normal"
	}
	if n.FontStyle != "italic" {
		n.FontStyle = "normal"
	}
	if n.ListStyle != "bullet" {
		n.ListStyle = "none"
	}
	return n
}

// normalizeFontSize accepts the legacy string enum (sm/base/lg) and numeric
// values; anything out of range falls back to the default.
func normalizeFontSize(v any) int {
	if s, ok := v.(string); ok {
		switch s {
		case "sm":
			return 12
		case "base":
			return DefaultFontSize
		case "lg":
			return 20
		}
		return DefaultFontSize
	}
	size := int(num(v))
	if size < MinFontSize || size > MaxFontSize {
		return DefaultFontSize
	}
	return size
}

func normalizeImageScale(v any) float64 {
	scale := num(v)
	if scale < MinImageScale || scale > MaxImageScale {
		return DefaultImageScale
	}
	return scale
}

// Recurrence modes for calendar events.
const (
	RecurNone    = "none"
	RecurDaily   = "daily"
	RecurWeekly  = "weekly"
	RecurMonthly = "monthly"
)

func ValidRecurrence(r string) bool {
	switch r {
	case RecurNone, RecurDaily, RecurWeekly, RecurMonthly:
		return true
	}
	return false
}

type CalendarEvent struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Date           string   `json:"date"`           // ISO YYYY-MM-DD anchor
	Time           string   `json:"time,omitempty"` // HH:MM, empty = all-day
	Recurring      string   `json:"recurring"`
	EndDate        string   `json:"endDate,omitempty"`
	ExceptionDates []string `json:"exceptionDates,omitempty"`
	CreatedAt      int64    `json:"createdAt"`
}

func (e CalendarEvent) Record() map[string]any {
	rec := map[string]any{
		"id":        e.ID,
		"title":     e.Title,
		"date":      e.Date,
		"recurring": e.Recurring,
		"createdAt": e.CreatedAt,
	}
	if e.Time != "" {
		rec["time"] = e.Time
	}
	if e.EndDate != "" {
		rec["endDate"] = e.EndDate
	}
	if len(e.ExceptionDates) > 0 {
		rec["exceptionDates"] = e.ExceptionDates
	}
	return rec
}

func EventFromRecord(rec map[string]any) CalendarEvent {
	e := CalendarEvent{
		ID:        str(rec["id"]),
		Title:     str(rec["title"]),
		Date:      str(rec["date"]),
		Time:      str(rec["time"]),
		Recurring: str(rec["recurring"]),
		EndDate:   str(rec["endDate"]),
		CreatedAt: Millis(rec["createdAt"]),
	}
	if !ValidRecurrence(e.Recurring) {
		e.Recurring = RecurNone
	}
	if e.Recurring == RecurNone {
		// endDate and exceptions only apply to a series
		e.EndDate = ""
		return e
	}
	e.ExceptionDates = strs(rec["exceptionDates"])
	return e
}

// EventOccurrence is one concrete date instance of an event. Derived on
// demand, never stored.
type EventOccurrence struct {
	Date        string `json:"date"`
	Time        string `json:"time,omitempty"`
	Title       string `json:"title"`
	EventID     string `json:"eventId"`
	IsRecurring bool   `json:"isRecurring"`
}

type Expense struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	PaidBy      string  `json:"paidBy,omitempty"`
	Date        string  `json:"date,omitempty"`
	CreatedAt   int64   `json:"createdAt"`
}

type Chore struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	AssignedTo string `json:"assignedTo,omitempty"`
	Done       bool   `json:"done"`
	DueDate    string `json:"dueDate,omitempty"`
	CreatedAt  int64  `json:"createdAt"`
}

type Member struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IconID    string `json:"iconId,omitempty"`
	Online    bool   `json:"online"`
	CreatedAt int64  `json:"createdAt"`
}

func MemberFromRecord(rec map[string]any) Member {
	return Member{
		ID:        str(rec["id"]),
		Name:      str(rec["name"]),
		IconID:    str(rec["iconId"]),
		CreatedAt: Millis(rec["createdAt"]),
	}
}

// Millis normalizes a stored createdAt value to epoch milliseconds. Stores may
// hand back a plain number or a native timestamp object with seconds and
// nanoseconds.
func Millis(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case map[string]any:
		secs := int64(num(t["seconds"]))
		nanos := num(t["nanoseconds"])
		if nanos == 0 {
			nanos = num(t["nanos"])
		}
		return secs*1000 + int64(nanos)/1e6
	}
	return 0
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func num(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	}
	return 0
}

func strs(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
