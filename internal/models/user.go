package models

// User is the profile the backend returns from login and /auth/me.
type User struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Commercial is an auditable staff member as listed by /users/commercials.
type Commercial struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Team string `json:"team"`
}

// LoginResponse is the body of POST /auth/login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}
