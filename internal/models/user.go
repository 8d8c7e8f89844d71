package models

import "time"

// CreatedAtLayout matches the ISO-8601 form written for Profile.CreatedAt.
const CreatedAtLayout = "2006-01-02T15:04:05.000Z07:00"

// Profile is the record kept at users/{uid}.
type Profile struct {
	Name      string `firestore:"name" json:"name"`
	Email     string `firestore:"email" json:"email"`
	CreatedAt string `firestore:"createdAt" json:"createdAt"`
}

// SessionUser is the authenticated user together with its profile record.
type SessionUser struct {
	UID         string  `json:"uid"`
	DisplayName string  `json:"displayName"`
	Email       string  `json:"email"`
	Profile     Profile `json:"profile"`
}

// NewProfile returns the profile written on registration.
func NewProfile(name, email string, now time.Time) Profile {
	return Profile{
		Name:      name,
		Email:     email,
		CreatedAt: now.UTC().Format(CreatedAtLayout),
	}
}

// Fields returns the profile as a store payload.
func (p Profile) Fields() map[string]any {
	return map[string]any{
		"name":      p.Name,
		"email":     p.Email,
		"createdAt": p.CreatedAt,
	}
}

// ProfileFromFields decodes a profile record. A nil map yields the zero Profile.
func ProfileFromFields(fields map[string]any) Profile {
	var p Profile
	p.Name, _ = fields["name"].(string)
	p.Email, _ = fields["email"].(string)
	switch v := fields["createdAt"].(type) {
	case string:
		p.CreatedAt = v
	case time.Time:
		p.CreatedAt = v.UTC().Format(CreatedAtLayout)
	}
	return p
}
