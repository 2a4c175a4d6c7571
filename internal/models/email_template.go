package models

// EmailTemplate is a stored mail template. Subject and Body are text/template
// sources rendered against the caller's context map.
type EmailTemplate struct {
	Base    `bson:",inline"`
	Name    string `bson:"name" json:"name"` // e.g. "welcome", "contact"
	Locale  string `bson:"locale" json:"locale"`
	Subject string `bson:"subject" json:"subject"`
	Body    string `bson:"body" json:"body"`
}

// MailResult mirrors what the mail endpoints report back to callers.
type MailResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
