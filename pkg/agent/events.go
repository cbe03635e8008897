package agent

import "github.com/xhad/askdocs/internal/models"

// EventType names the events a turn emits, in protocol order:
// user_message, zero or more rag_search pairs, zero or more chunks,
// then exactly one done or error.
type EventType string

const (
	EventUserMessage EventType = "user_message"
	EventSearch      EventType = "rag_search"
	EventChunk       EventType = "chunk"
	EventDone        EventType = "done"
	EventError       EventType = "error"
)

// Search statuses.
const (
	SearchStatusSearching = "searching"
	SearchStatusCompleted = "completed"
)

// SearchEvent reports tool-invocation progress to the client.
// ResultsCount is set on every completed event, zero included, and
// absent while searching.
type SearchEvent struct {
	Query        string `json:"query"`
	ResultsCount *int   `json:"results_count,omitempty"`
	Status       string `json:"status"`
}

// Event is one orchestrator progress notification. Exactly one of the
// payload fields is set, matching Type.
type Event struct {
	Type    EventType
	Message *models.Message // user_message, done
	Search  *SearchEvent    // rag_search
	Chunk   string          // chunk
	Err     string          // error
}

// EmitFunc delivers events to the client in order. Returning an error
// aborts the turn; a disconnected client has no use for the rest.
type EmitFunc func(Event) error
