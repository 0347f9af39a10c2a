package dto

type CreateTaskRequest struct {
	CustomerName    string  `json:"customer_name"`
	CustomerContact string  `json:"customer_contact"`
	GameName        string  `json:"game_name"`
	GameMode        string  `json:"game_mode"`
	Requirements    string  `json:"requirements"`
	DurationMinutes int     `json:"duration_minutes"`
	Price           float64 `json:"price"`
	PlayerID        *string `json:"player_id,omitempty"`
}

type UpdateTaskRequest struct {
	CustomerName    *string  `json:"customer_name,omitempty"`
	CustomerContact *string  `json:"customer_contact,omitempty"`
	GameName        *string  `json:"game_name,omitempty"`
	GameMode        *string  `json:"game_mode,omitempty"`
	Requirements    *string  `json:"requirements,omitempty"`
	DurationMinutes *int     `json:"duration_minutes,omitempty"`
	Price           *float64 `json:"price,omitempty"`
}

type ReassignTaskRequest struct {
	PlayerID string `json:"player_id"`
}

type ExtendDurationRequest struct {
	Minutes int    `json:"minutes"`
	Reason  string `json:"reason"`
}

type RequestExtensionRequest struct {
	Minutes int    `json:"minutes"`
	Reason  string `json:"reason"`
}

type ReviewExtensionRequest struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
}
