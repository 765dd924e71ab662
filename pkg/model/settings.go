package model

// Fixed identifiers of the records the settings form manages.
const (
	AppName = "signalfx-forwarder-app"
	Owner   = "nobody"

	IngestConfigCollection = "sfx_ingest_config"
	IngestConfigLookup     = "sfx_ingest_config_lookup"

	TokenRealm    = "sfx_ingest_command"
	TokenUsername = "access_token"

	DefaultIngestURL = "https://ingest.us0.signalfx.com"
)

// IngestConfig is the single row of the ingest config collection.
// Key is assigned by the backend on creation.
type IngestConfig struct {
	IngestURL string `json:"ingest_url"`
	Key       string `json:"_key"`
}

// AccessCredential is the vault entry holding the SignalFx access token.
type AccessCredential struct {
	Realm         string `json:"realm"`
	Username      string `json:"username"`
	ClearPassword string `json:"clear_password"`
}

// Matches reports whether c is the credential identified by realm and username.
func (c AccessCredential) Matches(realm, username string) bool {
	return c.Realm == realm && c.Username == username
}

// ForwarderConfig is what the forwarder needs to talk to SignalFx ingest.
type ForwarderConfig struct {
	IngestURL   string `json:"ingest_url"`
	AccessToken string `json:"-"`
}
