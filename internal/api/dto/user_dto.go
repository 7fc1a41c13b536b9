package dto

type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=3"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

type UserDTO struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type UserProfileDTO struct {
	UserDTO
	Conversions []ConversionDTO `json:"conversions"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}
