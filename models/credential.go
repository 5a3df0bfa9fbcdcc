package models

// Credential is the persisted session obtained from the upstream login
// endpoint (auth_config.json). The sn nonce is fixed per upstream deployment
// and accompanies every data query alongside the bearer token.
type Credential struct {
	Token       string `json:"token"`
	SN          string `json:"sn"`
	SNTime      int64  `json:"snTime"`
	Username    string `json:"username"`
	UpdatedAt   string `json:"updatedAt"`   // human-readable, for the dashboard
	UpdatedAtTS int64  `json:"updatedAtTs"` // unix millis, for freshness logic
	Status      string `json:"status"`
}
