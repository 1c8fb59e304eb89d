package domain

// StorageEvent is a change observed in the shared key-value store.
// Origin identifies the tab that made the change.
type StorageEvent struct {
	Key     string `json:"key"`
	Value   string `json:"value,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
	Origin  string `json:"origin"`
}
