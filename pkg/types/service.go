package types

// ServiceInfo describes a cloud integration provider.
type ServiceInfo struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	Settings []SettingSpecifier `json:"settings"`
	// Placeholders are the source value reference path segment names, in order.
	Placeholders []string `json:"placeholders,omitempty"`
	Hidden       bool     `json:"hidden,omitempty"`
}

// SettingSpecifier defines a single setting of an integration.
type SettingSpecifier struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Type        string `json:"type"` // e.g. "string" or "password"
	Required    bool   `json:"required"`
	Secure      bool   `json:"secure,omitempty"`
	Description string `json:"description,omitempty"`
}
