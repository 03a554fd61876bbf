// Package director owns the persistence of director profiles and the
// capability rules derived from them. A directors profile is a single
// document keyed by their external identity uid; the profile carries both
// the public-facing biography fields and the moderation flags (admin,
// blocked) which gate what the account may do.
package director

import (
	"time"

	"github.com/davguerra/filmoteca/internal/database"
)

type (
	// Festival is one appearance of the directors work at a festival.
	Festival struct {
		Name string `json:"name"`
		Year int    `json:"year"`
		Work string `json:"work"`
	}

	// Award is a single prize or recognition the director has received.
	Award struct {
		Name string `json:"name"`
		Year int    `json:"year"`
		Work string `json:"work"`
	}

	Director struct {
		// UID is the external identity of the account. It is assigned by
		// the identity provider at the edge, never generated here.
		UID string `db:"uid" json:"uid"`

		Name            string `db:"name" json:"name"`
		Email           string `db:"email" json:"email"`
		ProfileImageURL string `db:"profile_image_url" json:"profileImageUrl"`
		HomeTown        string `db:"home_town" json:"homeTown"`
		University      string `db:"university" json:"university"`
		Degree          string `db:"degree" json:"degree"`
		Biography       string `db:"biography" json:"biography"`
		Inspirations    string `db:"inspirations" json:"inspirations"`
		Motto           string `db:"motto" json:"motto"`

		Festivals database.JsonColumn[[]Festival] `db:"festivals" json:"festivals"`
		Awards    database.JsonColumn[[]Award]    `db:"awards" json:"awards"`

		YouTubeChannel string                                 `db:"youtube_channel" json:"youtubeChannel"`
		SocialLinks    database.JsonColumn[map[string]string] `db:"social_links" json:"socialLinks"`

		// Payment handles shown on the profile so viewers can support the
		// director directly.
		YapeQrURL  string `db:"yape_qr_url" json:"yapeQrUrl"`
		YapeNumber string `db:"yape_number" json:"yapeNumber"`
		PlinNumber string `db:"plin_number" json:"plinNumber"`

		IsAdmin   bool `db:"is_admin" json:"isAdmin"`
		IsBlocked bool `db:"is_blocked" json:"isBlocked"`

		CreatedAt time.Time `db:"created_at" json:"createdAt"`
		UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	}
)

// Role is the capability level of an account, derived from its profile.
type Role int

const (
	// Guest is an unauthenticated viewer, or an account with no profile.
	Guest Role = iota

	// Blocked accounts may browse but may not upload or mutate anything.
	Blocked

	// DirectorRole is a regular authenticated director.
	DirectorRole

	// Admin may additionally delete any content and manage other accounts.
	Admin
)

func (role Role) String() string {
	switch role {
	case Blocked:
		return "blocked"
	case DirectorRole:
		return "director"
	case Admin:
		return "admin"
	default:
		return "guest"
	}
}

// RoleOf derives the capability level from a profile. A nil profile is a
// guest. The blocked flag takes priority over the admin flag.
func RoleOf(profile *Director) Role {
	if profile == nil {
		return Guest
	}

	if profile.IsBlocked {
		return Blocked
	}

	if profile.IsAdmin {
		return Admin
	}

	return DirectorRole
}

// CanUpload reports whether the account may create or edit content.
func (role Role) CanUpload() bool {
	return role == DirectorRole || role == Admin
}

// CanDeleteContent reports whether the account may delete content owned by
// the given director. Admins may delete anything; a regular director may
// only delete their own items.
func CanDeleteContent(actor *Director, ownerUID string) bool {
	role := RoleOf(actor)
	if role == Admin {
		return true
	}

	return role == DirectorRole && actor.UID == ownerUID
}
