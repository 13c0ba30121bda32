package model

// ChunkEvent carries one piece of an incrementally generated response.
type ChunkEvent struct {
	Chunk string `json:"chunk"`
}

// DoneEvent terminates a successful stream.
type DoneEvent struct {
	Done           bool   `json:"done"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ErrorEvent terminates a failed stream.
type ErrorEvent struct {
	Error string `json:"error"`
}
