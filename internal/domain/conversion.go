package domain

import "time"

// GIFContentType is the content type stored on every converted blob
const GIFContentType = "image/gif"

// Conversion is one video to gif job and its lifecycle record.
// GifFileID moves from nil to a blob id exactly once.
type Conversion struct {
	ID          string    `db:"id"`
	OwnerID     string    `db:"owner_id"`
	VideoFileID string    `db:"video_file_id"`
	GifFileID   *string   `db:"gif_file_id"`
	WebhookURL  *string   `db:"webhook_url"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Converted reports whether the output blob has been recorded
func (c *Conversion) Converted() bool {
	return c.GifFileID != nil && *c.GifFileID != ""
}

// Webhook returns the webhook target or an empty string
func (c *Conversion) Webhook() string {
	if c.WebhookURL == nil {
		return ""
	}
	return *c.WebhookURL
}

// WebhookPayload is the body POSTed to a webhook target
type WebhookPayload struct {
	ID          string `json:"id"`
	VideoFileID string `json:"video_file_id"`
	GifFileID   string `json:"gif_file_id"`
}

// NewWebhookPayload builds the notification body for a completed conversion
func NewWebhookPayload(c *Conversion) (*WebhookPayload, error) {
	if !c.Converted() {
		return nil, ErrOutputNotReady
	}

	return &WebhookPayload{
		ID:          c.ID,
		VideoFileID: c.VideoFileID,
		GifFileID:   *c.GifFileID,
	}, nil
}
