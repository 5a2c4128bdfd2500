package call

// NotificationListRequest represents query parameters for listing notifications
type NotificationListRequest struct {
	Limit int `query:"limit" validate:"omitempty,min=1,max=100"`
}
