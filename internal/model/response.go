package model

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Detail  string `json:"detail"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type AuditListData struct {
	Items []AuditEntry `json:"items"`
	Meta  Meta         `json:"meta"`
}
