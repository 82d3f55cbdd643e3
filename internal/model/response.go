package model

type TurnEvent struct {
	ProjectID string `json:"project_id"`
	State     string `json:"state"`
	Artifact  string `json:"artifact"`
	Revision  uint64 `json:"revision"`
	Failed    bool   `json:"failed,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type ProjectListResponse struct {
	Projects        []Project `json:"projects"`
	ActiveProjectID string    `json:"active_project_id"`
}

type MessagesResponse struct {
	ProjectID string    `json:"project_id"`
	Messages  []Message `json:"messages"`
}

type StateResponse struct {
	ProjectID string `json:"project_id"`
	State     string `json:"state"`
	Artifact  string `json:"artifact"`
	Revision  uint64 `json:"revision"`
	Failed    bool   `json:"failed"`
}
