package types

// DeployRequest is the body of POST /deploy. Slug is optional; one is
// generated when omitted.
type DeployRequest struct {
	GitURL string `json:"gitURL" validate:"required,url"`
	Slug   string `json:"slug" validate:"omitempty,max=63"`
}
