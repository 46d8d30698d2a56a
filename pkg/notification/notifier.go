package notification

// NoticeType identifies a kind of notification (e.g. welcome email).
type NoticeType string

const (
	WelcomeNotice NoticeType = "welcome"
)

// NotificationData carries the recipient and template data for a notice.
type NotificationData struct {
	To      string            // Recipient identifier (e.g. email address)
	Subject string            // Optional subject for email-like systems
	Body    string            // Pre-rendered content, if any
	Data    map[string]string // Template data
}

// Notifier sends a notification of the given type.
type Notifier interface {
	Send(noticeType NoticeType, notification NotificationData) error
}
