package dto

// NotificationQuery captures listing filters for a recipient's
// notification feed.
type NotificationQuery struct {
	UnreadOnly bool
	Page       int
	PageSize   int
}

// UnreadCountResponse reports the recipient's unread notification count.
type UnreadCountResponse struct {
	Unread int `json:"unread"`
}
