package feed

// Tombstoning scrubs PII-bearing fields so the permanently retained row is
// small and carries nothing sensitive. The identifier and scope keys survive;
// everything a reader could care about is zeroed.

// Tombstone marks the email deleted at now and scrubs subject, body and
// snippet.
func (e *Email) Tombstone(now int64) {
	e.Deleted = true
	e.Subject = ""
	e.Body = ""
	e.Snippet = ""
	e.Touch(now)
}

// Tombstone marks the alias deleted at now and scrubs the address.
func (a *MailboxAlias) Tombstone(now int64) {
	a.Deleted = true
	a.Address = ""
	a.IsDefault = false
	a.Touch(now)
}

// Tombstone marks the temp alias deleted at now and scrubs the address.
func (a *TempAlias) Tombstone(now int64) {
	a.Deleted = true
	a.Address = ""
	a.Touch(now)
}

// Tombstone marks the draft deleted at now and scrubs subject, body and
// recipients.
func (d *DraftEmail) Tombstone(now int64) {
	d.Deleted = true
	d.Subject = ""
	d.Body = ""
	d.To = nil
	d.Touch(now)
}

// Tombstone marks the token deleted at now and scrubs the token value.
func (tk *MailboxToken) Tombstone(now int64) {
	tk.Deleted = true
	tk.TokenValue = ""
	tk.Touch(now)
}

// Tombstone marks the recipient deleted at now and scrubs the address.
func (r *EmailRecipient) Tombstone(now int64) {
	r.Deleted = true
	r.Address = ""
	r.Touch(now)
}

// Tombstone marks the sender deleted at now and scrubs address and name.
func (s *EmailSender) Tombstone(now int64) {
	s.Deleted = true
	s.Address = ""
	s.DisplayName = ""
	s.Touch(now)
}

// Tombstone marks the attachment deleted at now and scrubs filename and
// storage key.
func (a *EmailAttachment) Tombstone(now int64) {
	a.Deleted = true
	a.Filename = ""
	a.StorageKey = ""
	a.Touch(now)
}

// Tombstone marks the domain deleted at now and scrubs the domain name.
func (d *MailboxCustomDomain) Tombstone(now int64) {
	d.Deleted = true
	d.Domain = ""
	d.Verified = false
	d.Touch(now)
}

// Tombstone marks the category deleted at now and scrubs the name.
func (c *MailboxCategory) Tombstone(now int64) {
	c.Deleted = true
	c.Name = ""
	c.Color = ""
	c.Touch(now)
}

// Tombstone marks the session deleted (revoked) at now and scrubs the hash.
func (s *UserSession) Tombstone(now int64) {
	s.Deleted = true
	s.TokenHash = ""
	s.Touch(now)
}
