package feed

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/maildrift/maildrift/internal/common"
)

// ActionType discriminates mutation payloads. The set is closed: the server
// dispatches with an exhaustive switch, so adding an action is a compile-time
// change, not a runtime lookup.
type ActionType string

const (
	ActionAliasAdd        ActionType = "alias.add"
	ActionAliasDelete     ActionType = "alias.delete"
	ActionAliasSetDefault ActionType = "alias.setDefault"

	ActionTempAliasCreate ActionType = "tempAlias.create"
	ActionTempAliasDelete ActionType = "tempAlias.delete"

	ActionDomainAdd    ActionType = "domain.add"
	ActionDomainDelete ActionType = "domain.delete"

	ActionCategorySave   ActionType = "category.save"
	ActionCategoryDelete ActionType = "category.delete"

	ActionDraftSave   ActionType = "draft.save"
	ActionDraftDelete ActionType = "draft.delete"
	ActionDraftSend   ActionType = "draft.send"

	ActionEmailSetFlags ActionType = "email.setFlags"
	ActionEmailMove     ActionType = "email.move"
	ActionEmailDelete   ActionType = "email.delete"

	ActionNotificationMarkRead ActionType = "notification.markRead"

	ActionMailboxRename ActionType = "mailbox.rename"
)

// Action is the mutation envelope: a discriminated type plus its typed
// payload, still raw here so transport and dispatch stay decoupled.
type Action struct {
	Type    ActionType      `json:"actionType"`
	Payload json.RawMessage `json:"payload"`
}

// NewAction builds an envelope from a typed payload.
func NewAction(t ActionType, payload any) (Action, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Action{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return Action{Type: t, Payload: raw}, nil
}

// Decode unmarshals the payload into v, rejecting unknown fields so payload
// mistakes surface as validation errors instead of silent zero values.
func (a Action) Decode(v any) error {
	dec := json.NewDecoder(bytes.NewReader(a.Payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: bad %s payload: %v", common.ErrValidation, a.Type, err)
	}
	return nil
}

// Typed payloads, one per action. IDs of rows created optimistically are
// client-generated so the server persists them under the same identity.

type AliasAddPayload struct {
	ID        string `json:"id"`
	MailboxID string `json:"mailboxId"`
	Address   string `json:"address"`
}

type AliasDeletePayload struct {
	ID string `json:"id"`
}

type AliasSetDefaultPayload struct {
	MailboxID string `json:"mailboxId"`
	AliasID   string `json:"aliasId"`
}

type TempAliasCreatePayload struct {
	ID        string `json:"id"`
	MailboxID string `json:"mailboxId"`
	Address   string `json:"address"`
	ExpiresAt int64  `json:"expiresAt"`
}

type TempAliasDeletePayload struct {
	ID string `json:"id"`
}

type DomainAddPayload struct {
	ID        string `json:"id"`
	MailboxID string `json:"mailboxId"`
	Domain    string `json:"domain"`
}

type DomainDeletePayload struct {
	ID string `json:"id"`
}

type CategorySavePayload struct {
	ID        string `json:"id"`
	MailboxID string `json:"mailboxId"`
	Name      string `json:"name"`
	Color     string `json:"color,omitempty"`
}

type CategoryDeletePayload struct {
	ID string `json:"id"`
}

type DraftSavePayload struct {
	ID        string   `json:"id"`
	MailboxID string   `json:"mailboxId"`
	Subject   string   `json:"subject"`
	Body      string   `json:"body,omitempty"`
	To        []string `json:"to,omitempty"`
}

type DraftDeletePayload struct {
	ID string `json:"id"`
}

type DraftSendPayload struct {
	DraftID string `json:"draftId"`
	// EmailID is the client-chosen identity of the email the send creates.
	EmailID string `json:"emailId"`
}

type EmailSetFlagsPayload struct {
	ID      string `json:"id"`
	Read    *bool  `json:"read,omitempty"`
	Starred *bool  `json:"starred,omitempty"`
}

type EmailMovePayload struct {
	ID         string `json:"id"`
	CategoryID string `json:"categoryId"`
}

type EmailDeletePayload struct {
	ID string `json:"id"`
}

type NotificationMarkReadPayload struct {
	ID string `json:"id"`
}

type MailboxRenamePayload struct {
	MailboxID   string `json:"mailboxId"`
	DisplayName string `json:"displayName"`
}

// MutationResponse is the wire shape of a mutation call's reply.
// Exactly one of Success or Error is set; Sync rides along on success.
type MutationResponse struct {
	Success *SuccessBody `json:"success,omitempty"`
	Error   string       `json:"error,omitempty"`
	Sync    *Bundle      `json:"sync,omitempty"`
}

// SuccessBody is the human-facing part of a successful mutation reply.
type SuccessBody struct {
	Message     string `json:"message"`
	Description string `json:"description,omitempty"`
}
