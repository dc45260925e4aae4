package domain

// RemoteProfile is the identity payload returned by a successful remote
// credential verification. All fields default to the empty string; a profile
// only ever exists for a verified login, so an empty field means the remote
// account simply doesn't carry it.
type RemoteProfile struct {
	ExternalID  string // stable remote identifier (HumHub guid)
	Username    string
	Email       string
	FirstName   string
	LastName    string
	DisplayName string
	ProfileURL  string
	ImageURL    string
}
