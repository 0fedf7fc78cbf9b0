package model

// Setting keys. Each key holds a single JSON document in the settings table.
const (
	SettingSuperAccount   = "email/super-email"
	SettingLabels         = "email/labels"
	SettingLangLabels     = "email/lang-labels"
	SettingLastPullAt     = "email/last-pull-at"
	SettingAllowedDomains = "email/allowed-domains"
)

// SuperAccount is the single Gmail account the service syncs, granted once via
// the OAuth consent flow.
type SuperAccount struct {
	Email        string `json:"email"`
	RefreshToken string `json:"refreshToken"`
}
