package model

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuditQuery struct {
	Action  string
	ActorID string
	Status  string
	Page    int
	Limit   int
}
