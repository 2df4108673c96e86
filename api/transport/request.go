package transport

// SettingsRequest is the body of settings save and connection test calls.
type SettingsRequest struct {
	APIKey     string `json:"api_key"`
	APIBaseURL string `json:"api_base_url"`
}

type InventoryUploadRequest struct {
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
	ReferenceID string `json:"reference_id"`
}
