package dto

import "github.com/cuongbtq/video2gif/internal/domain"

type ListConversionsRequest struct {
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListConversionsResponse struct {
	Conversions []ConversionDTO `json:"conversions"`
	NextCursor  string          `json:"next_cursor,omitempty"`
}

type ConversionDTO struct {
	ID          string  `json:"id"`
	VideoFileID string  `json:"video_file_id"`
	GifFileID   *string `json:"gif_file_id"`
	WebhookURL  *string `json:"webhook_url"`
}

func NewConversionDTO(c *domain.Conversion) ConversionDTO {
	return ConversionDTO{
		ID:          c.ID,
		VideoFileID: c.VideoFileID,
		GifFileID:   c.GifFileID,
		WebhookURL:  c.WebhookURL,
	}
}

func NewConversionDTOs(conversions []domain.Conversion) []ConversionDTO {
	out := make([]ConversionDTO, len(conversions))
	for i := range conversions {
		out[i] = NewConversionDTO(&conversions[i])
	}
	return out
}
