package models

type CreateRoomRequest struct {
	ServerHash string `json:"serverHash"`
}

type CreateRoomResponse struct {
	ChatID string `json:"chatId"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Rooms  int    `json:"rooms"`
}
