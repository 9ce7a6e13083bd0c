package live

// MessageType is the first byte of every binary frame.
type MessageType uint8

const (
	// FrameDocument carries a regenerated document.
	FrameDocument MessageType = 0x00
	// FrameSelect carries a node key picked in the preview.
	FrameSelect MessageType = 0x01
	// FrameControl carries HELLO / PING / PONG.
	FrameControl MessageType = 0x02
)

// Update is one published revision of a page.
type Update struct {
	Page        string   `json:"page"`
	Version     uint64   `json:"version"`
	Hash        string   `json:"hash"`
	Document    string   `json:"document"`
	Diagnostics []string `json:"diagnostics,omitempty"`
	// Error is set when the page failed to compile; Document then holds the
	// last good revision.
	Error string `json:"error,omitempty"`
	// Preview is the resolved node tree as JSON, when the publisher has one.
	Preview string `json:"preview,omitempty"`
}

// Selection is a node picked by a connected preview.
type Selection struct {
	Session string
	Page    string
	Key     string
}
