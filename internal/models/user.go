package models

// Role enum
type Role string

const (
	RoleRegistrar  Role = "registrar"
	RoleNurse      Role = "nurse"
	RoleDoctor     Role = "doctor"
	RolePharmacist Role = "pharmacist"
	RoleAdmin      Role = "admin"
)

// Roles lists every role the front-end knows how to serve.
var Roles = []Role{RoleRegistrar, RoleNurse, RoleDoctor, RolePharmacist, RoleAdmin}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Session is the proof of authentication held on behalf of one browser.
type Session struct {
	Token    string `json:"token"`
	Role     Role   `json:"role"`
	Username string `json:"username,omitempty"`
}

// Credentials is the login form.
type Credentials struct {
	Username string `json:"username" form:"username" validate:"notblank"`
	Password string `json:"password" form:"password" validate:"notblank"`
}

// LoginUser is the user block of the upstream login response.
type LoginUser struct {
	Role     Role   `json:"role"`
	Username string `json:"username"`
}

// LoginResponse is the upstream response to POST /auth/login.
type LoginResponse struct {
	Token string     `json:"token"`
	User  *LoginUser `json:"user"`
}
