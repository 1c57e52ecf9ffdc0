package address

import "github.com/LukaGiorgadze/gonull"

// NetworkInfo is the reachability record of one user as reported by the
// rendezvous server.
type NetworkInfo struct {
	UserID  string
	Private Endpoint
	Public  gonull.Nullable[Endpoint]
}

// NewNetworkInfo creates an online record with both endpoints.
func NewNetworkInfo(userID string, private, public Endpoint) NetworkInfo {
	return NetworkInfo{
		UserID:  userID,
		Private: private,
		Public:  gonull.NewNullable(public),
	}
}

// OfflineInfo creates a record for a user that is unknown or unregistered.
func OfflineInfo(userID string) NetworkInfo {
	return NetworkInfo{UserID: userID}
}

// IsOnline reports whether the user currently has a public endpoint.
func (n NetworkInfo) IsOnline() bool {
	return n.Public.Valid
}

// PublicEndpoint returns the public endpoint and whether it is present.
func (n NetworkInfo) PublicEndpoint() (Endpoint, bool) {
	if !n.Public.Valid {
		return Endpoint{}, false
	}
	return n.Public.Val, true
}
