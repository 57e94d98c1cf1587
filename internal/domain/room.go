package domain

// Room es una sala de chat con identificador estable asignado por el store.
type Room struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
