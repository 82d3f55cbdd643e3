package model

type PromptRequest struct {
	Message string `json:"message" binding:"required"`
}

type SwitchProjectRequest struct {
	ProjectID string `json:"project_id"`
}

// CreateProjectRequest is the store transport payload for createProject.
type CreateProjectRequest struct {
	ID string `json:"id" binding:"required"`
}

type SaveMessagesRequest struct {
	Messages []Message `json:"messages"`
}
