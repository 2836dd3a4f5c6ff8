package dto

type CreateReportRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Address     string   `json:"address"`
	Longitude   *float64 `json:"longitude"`
	Latitude    *float64 `json:"latitude"`
	Images      []string `json:"images"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// VoteRequest.Value is a pointer so a missing field is told apart from 0.
type VoteRequest struct {
	Value *int `json:"value"`
}
