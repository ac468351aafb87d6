package store

// CallStatus is the state of a journaled procedure call.
type CallStatus string

const (
	CallPending CallStatus = "pending"
	CallOK      CallStatus = "ok"
	CallFailed  CallStatus = "failed"
)

// Call is one journaled remote procedure invocation.
type Call struct {
	ID           int64
	CallID       string
	Procedure    string
	Args         string // JSON
	Status       CallStatus
	ErrorMessage string
	CreatedAt    int64
	UpdatedAt    int64
}
