package model

// SendResult is the per-recipient outcome of one dispatch through the
// Messages bridge.
type SendResult struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// SendReport aggregates one send-sms call.
type SendReport struct {
	Results []SendResult `json:"results"`
	Sent    int          `json:"sent"`
	Failed  int          `json:"failed"`
}

type NotificationLevel string

const (
	LevelSuccess NotificationLevel = "success"
	LevelError   NotificationLevel = "error"
	LevelWarning NotificationLevel = "warning"
	LevelInfo    NotificationLevel = "info"
)

// Notification is a transient message for the presentation layer's toast area.
type Notification struct {
	Message string            `json:"message"`
	Level   NotificationLevel `json:"level"`
}
