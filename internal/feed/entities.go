package feed

// Mailbox is the account-level aggregate. StorageUsedBytes is derived from
// the emails table and is re-emitted in any mutation bundle that changes it.
type Mailbox struct {
	Meta
	Address           string `json:"address"`
	DisplayName       string `json:"displayName,omitempty"`
	DefaultAliasID    string `json:"defaultAliasId,omitempty"`
	StorageUsedBytes  int64  `json:"storageUsedBytes"`
	StorageQuotaBytes int64  `json:"storageQuotaBytes"`
}

// MailboxAlias is a receiving address attached to a mailbox.
type MailboxAlias struct {
	Meta
	Address   string `json:"address"`
	IsDefault bool   `json:"isDefault,omitempty"`
}

// MailboxCustomDomain is a user-supplied domain aliases can live under.
type MailboxCustomDomain struct {
	Meta
	Domain   string `json:"domain"`
	Verified bool   `json:"verified,omitempty"`
}

// MailboxCategory is a user-defined folder/label for emails.
type MailboxCategory struct {
	Meta
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// MailboxUser links a user to a mailbox with a role. Both scope keys are set.
type MailboxUser struct {
	Meta
	Role string `json:"role"`
}

// TempAlias is a short-lived receiving address.
type TempAlias struct {
	Meta
	Address   string `json:"address"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Email is a received or sent message. Body holds the rendered text; the
// MIME source and attachments' bytes live outside this system.
type Email struct {
	Meta
	CategoryID string `json:"categoryId,omitempty"`
	Subject    string `json:"subject"`
	Body       string `json:"body,omitempty"`
	Snippet    string `json:"snippet,omitempty"`
	Read       bool   `json:"read,omitempty"`
	Starred    bool   `json:"starred,omitempty"`
	SizeBytes  int64  `json:"sizeBytes"`
	ReceivedAt int64  `json:"receivedAt"`
}

// EmailRecipient is one to/cc/bcc address of an email.
type EmailRecipient struct {
	Meta
	EmailID string `json:"emailId"`
	Address string `json:"address"`
	Kind    string `json:"kind"` // "to", "cc" or "bcc"
}

// EmailSender is the from-address of an email.
type EmailSender struct {
	Meta
	EmailID     string `json:"emailId"`
	Address     string `json:"address"`
	DisplayName string `json:"displayName,omitempty"`
}

// EmailAttachment describes an attachment; the bytes themselves are stored
// externally under StorageKey.
type EmailAttachment struct {
	Meta
	EmailID    string `json:"emailId"`
	Filename   string `json:"filename"`
	MimeType   string `json:"mimeType,omitempty"`
	SizeBytes  int64  `json:"sizeBytes"`
	StorageKey string `json:"storageKey,omitempty"`
}

// DraftEmail is an unsent message. Sending tombstones the draft and creates
// an Email in the same transaction.
type DraftEmail struct {
	Meta
	Subject string   `json:"subject"`
	Body    string   `json:"body,omitempty"`
	To      []string `json:"to,omitempty"`
}

// User is an account holder.
type User struct {
	Meta
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// UserSession is a refresh-token session. Only the token hash syncs; the
// token value never leaves the auth exchange.
type UserSession struct {
	Meta
	TokenHash string `json:"tokenHash,omitempty"`
	ExpiresAt int64  `json:"expiresAt"`
}

// MailboxToken is an API token scoped to a mailbox.
type MailboxToken struct {
	Meta
	Name       string `json:"name"`
	TokenValue string `json:"tokenValue,omitempty"`
	ExpiresAt  int64  `json:"expiresAt,omitempty"`
}

// UserNotification is a server-generated message for the user.
type UserNotification struct {
	Meta
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`
	Read    bool   `json:"read,omitempty"`
}
