package authapi

// credentialsRequest is the body of both signup and signin.
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

type signinResponse struct {
	Authenticated bool `json:"authenticated"`
}
