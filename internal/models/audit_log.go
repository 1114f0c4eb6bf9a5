package models

// AuditLog records changes to configuration that affect tax figures, such
// as manual exchange rates and cost-basis method switches.
type AuditLog struct {
	Base
	Actor        string `gorm:"not null;index" json:"actor"`
	Action       string `gorm:"not null" json:"action"`
	ResourceType string `gorm:"not null" json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	IPAddress    string `json:"ip_address"`
	Changes      string `json:"changes,omitempty"`
}
