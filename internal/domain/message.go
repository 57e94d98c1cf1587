package domain

// Message es un mensaje inmutable dentro de una sala. El timestamp va en
// milisegundos unix y lo asigna el cliente al enviar.
type Message struct {
	ID         string `json:"id"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Text       string `json:"text"`
	Timestamp  int64  `json:"timestamp"`
}

// Identity es la identidad anonima de la sesion: uid opaco del proveedor
// de auth mas el nombre derivado. Se resuelve una sola vez por proceso.
type Identity struct {
	UserID      string `json:"uid"`
	DisplayName string `json:"display_name"`
}
