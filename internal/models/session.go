package models

// StoredSession is the persisted form of a browser session, keyed by the
// opaque id carried in the session cookie.
type StoredSession struct {
	BaseModel
	Token    string `gorm:"type:text;not null" json:"-"`
	Role     Role   `gorm:"size:20;not null" json:"role"`
	Username string `gorm:"size:255" json:"username"`
}

// TableName pins the table name used by the session store.
func (StoredSession) TableName() string {
	return "sessions"
}

// Session converts the row back into the in-memory session record.
func (s *StoredSession) Session() Session {
	return Session{Token: s.Token, Role: s.Role, Username: s.Username}
}

// NewStoredSession builds the row for a session id.
func NewStoredSession(id string, s Session) *StoredSession {
	return &StoredSession{
		BaseModel: BaseModel{ID: id},
		Token:     s.Token,
		Role:      s.Role,
		Username:  s.Username,
	}
}
