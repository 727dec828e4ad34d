package model

// Profile is the public view of a user.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
	Bio   string `json:"bio,omitempty"`

	// Computed on read; ignored on write.
	FollowerCount  int `json:"followers_count"`
	FollowingCount int `json:"following_count"`
}
