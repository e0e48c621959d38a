package presencehandler

type PresenceResponse struct {
	User     string `json:"user"`
	Online   bool   `json:"online"`
	LastAddr string `json:"last_addr,omitempty"`
} // @name PresenceResponse

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse
