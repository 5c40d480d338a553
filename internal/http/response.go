package http

type Status string

const (
	// StatusOK is used for health-check responses.
	StatusOK Status = "OK"

	// StatusSuccess indicates a command completed successfully.
	StatusSuccess Status = "success"

	// StatusError indicates a command failed.
	StatusError Status = "error"
)

// Response represents the standard API response format.
type Response struct {
	Status Status `json:"status,omitempty"`
	Value  any    `json:"value,omitempty"`
	Error  string `json:"error,omitempty"`
}

// HashResponse answers GET /api/hash.
type HashResponse struct {
	Key    string `json:"key"`
	Index  int    `json:"index"`
	Client string `json:"client"`
}

// ClientInfo describes one routable client.
type ClientInfo struct {
	Index int    `json:"index"`
	Addr  string `json:"addr"`
}

// ClientsResponse answers GET /api/clients.
type ClientsResponse struct {
	Clients    []ClientInfo `json:"clients"`
	Master     string       `json:"master,omitempty"`
	RingPoints int          `json:"ring_points"`
}

func NewOKResponse() Response {
	return Response{Status: StatusOK}
}

func NewValueResponse(value any) Response {
	return Response{Status: StatusSuccess, Value: value}
}

func NewErrorResponse(err string) Response {
	return Response{Status: StatusError, Error: err}
}
