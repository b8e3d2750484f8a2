// Package models holds the wire and state types shared by the client stores,
// the REST surface and the realtime channel. JSON names follow the backend.
package models

// User is the authenticated identity held by the session store.
type User struct {
	ID             string   `json:"id"`
	Username       string   `json:"username"`
	Email          string   `json:"email"`
	ProfilePicture string   `json:"profile_picture"`
	Repos          []string `json:"repos"`          // owned repository ids
	Collaborations []string `json:"collaborations"` // repositories the user collaborates on
}

// Clone returns a deep copy.
func (u User) Clone() User {
	u.Repos = cloneStrings(u.Repos)
	u.Collaborations = cloneStrings(u.Collaborations)
	return u
}

// IsZero reports whether no identity field is set.
func (u User) IsZero() bool {
	return u.ID == "" && u.Username == "" && u.Email == "" && u.ProfilePicture == "" &&
		len(u.Repos) == 0 && len(u.Collaborations) == 0
}

// Session is a point-in-time view of the session store.
type Session struct {
	User
	AccessToken  string `json:"-"`
	RefreshToken string `json:"-"`
}

// Authenticated is derived from the access token so it can never disagree with it.
func (s Session) Authenticated() bool { return s.AccessToken != "" }

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
