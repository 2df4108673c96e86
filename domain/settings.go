package domain

import "time"

// DefaultMarketplaceURL is used whenever a settings save omits the base url.
const DefaultMarketplaceURL = "https://prod.your-api-server.com"

// Settings is the singleton marketplace credential record. Saving replaces it.
type Settings struct {
	ID         string    `json:"id"`
	APIKey     string    `json:"api_key"`
	APIBaseURL string    `json:"api_base_url"`
	CreatedAt  time.Time `json:"created_at"`
}

// Masked returns a copy safe to show to callers without admin rights.
func (s Settings) Masked() Settings {
	if len(s.APIKey) > 4 {
		s.APIKey = "****" + s.APIKey[len(s.APIKey)-4:]
	} else if s.APIKey != "" {
		s.APIKey = "****"
	}
	return s
}
