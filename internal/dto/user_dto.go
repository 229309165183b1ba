package dto

type CreateUserRequest struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Name     string `json:"name"     validate:"required,min=1,max=100"`
	Role     string `json:"role"     validate:"required,oneof=SUPERVISOR COUNTER"`
	Admin    bool   `json:"admin"`
	Password string `json:"password" validate:"required,min=8"`
}

// UpdateUserRequest changes only the fields that are present.
type UpdateUserRequest struct {
	Email    *string `json:"email"    validate:"omitempty,email,max=255"`
	Name     *string `json:"name"     validate:"omitempty,min=1,max=100"`
	Role     *string `json:"role"     validate:"omitempty,oneof=SUPERVISOR COUNTER"`
	Admin    *bool   `json:"admin"`
	Password *string `json:"password" validate:"omitempty,min=8"`
}
