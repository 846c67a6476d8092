package api

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Bind string
	Port int
	// APIKey guards /api/v1 when set
	APIKey string
}

// FormatInfo describes one recognized container format
type FormatInfo struct {
	Name      string `json:"name"`
	Extension string `json:"extension"`
}

// HeaderResponse is the header of one container
type HeaderResponse struct {
	Path   string `json:"path"`
	Format string `json:"format"`
	Class  string `json:"class"`
	UID    string `json:"uid"`
	// Registered is true when the registry binds UID to Path
	Registered bool `json:"registered"`
}

// ResourceResponse is a decoded resource in payload tree form
type ResourceResponse struct {
	Path   string                 `json:"path"`
	Class  string                 `json:"class"`
	UID    string                 `json:"uid"`
	Fields map[string]interface{} `json:"fields"`
}

// UIDBinding is one registry entry
type UIDBinding struct {
	UID  string `json:"uid"`
	Path string `json:"path"`
}
