package models

// Principal is the authenticated caller of a control-plane RPC: an operator
// using a desktop shell, or an automation script holding a static API key
// (spec §4.K control-plane wire contract).
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}
