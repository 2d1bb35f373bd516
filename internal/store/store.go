package store

// Record is a schemaless document in a room collection.
type Record = map[string]any

// Store is a room-scoped document store with change subscriptions. Write
// semantics are last-write-wins: no versioning, no merge beyond the field
// level UpdateFields offers.
type Store interface {
	CreateRoom(roomID string) error
	Exists(roomID string) (bool, error)

	GetAll(roomID, collection string) ([]Record, error)
	// Subscribe registers a callback invoked with the collection's full
	// snapshot after every change (and once shortly after subscribing). The
	// returned function tears the subscription down.
	Subscribe(roomID, collection string, onChange func([]Record), onError func(error)) func()
	SetByID(roomID, collection, id string, rec Record) error
	UpdateFields(roomID, collection, id string, fields Record) error
	// DeleteByID is a no-op when the id is already gone.
	DeleteByID(roomID, collection, id string) error
}

func collectionKey(roomID, collection string) string {
	return roomID + "/" + collection
}

// Clone returns a shallow copy so callers can't alias a stored record.
func Clone(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
