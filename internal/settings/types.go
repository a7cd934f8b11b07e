package settings

import "time"

// Setting is one key/value entry of the runtime settings table.
type Setting struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UpsertRequest sets the value (and optionally the description) of a key.
type UpsertRequest struct {
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// WhatsAppStatus reports which provider settings are configured, masking secrets.
type WhatsAppStatus struct {
	Configured    bool   `json:"configured"`
	APIBaseURL    string `json:"api_base_url"`
	APIVersion    string `json:"api_version"`
	PhoneNumberID string `json:"phone_number_id"`
	AccessToken   string `json:"access_token"`
	VerifyToken   string `json:"verify_token"`
	AppSecret     string `json:"app_secret"`
}

// PublicGeneral is the business information anyone may read.
type PublicGeneral struct {
	BusinessName  string `json:"business_name"`
	BusinessHours string `json:"business_hours"`
}

// WhatsAppUpdate changes the provider credentials; nil fields are left alone.
type WhatsAppUpdate struct {
	AccessToken   *string `json:"access_token,omitempty" validate:"omitempty,max=1024"`
	PhoneNumberID *string `json:"phone_number_id,omitempty" validate:"omitempty,max=64"`
	VerifyToken   *string `json:"verify_token,omitempty" validate:"omitempty,max=256"`
}
