package domain

import (
	"fmt"
	"strings"
)

// EntityType identifies the kind of billing entity a notification targets.
type EntityType string

const (
	EntityInvoice  EntityType = "invoice"
	EntityContract EntityType = "contract"
)

func (t EntityType) String() string { return string(t) }

func (t EntityType) IsValid() bool {
	switch t {
	case EntityInvoice, EntityContract:
		return true
	}
	return false
}

func ParseEntityTypeFromString(s string) (EntityType, error) {
	t := EntityType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: invalid entity type %q", ErrValidation, s)
	}
	return t, nil
}

// Channel represents the delivery channel.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelSMS:
		return true
	}
	return false
}

func ParseChannelFromString(s string) (Channel, error) {
	ch := Channel(strings.ToLower(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// NotificationTarget identifies one entity to notify. Immutable once enqueued.
type NotificationTarget struct {
	EntityType EntityType
	EntityID   string
}

func (t NotificationTarget) Validate() error {
	if !t.EntityType.IsValid() {
		return fmt.Errorf("%w: invalid entity type %q", ErrValidation, t.EntityType)
	}
	if strings.TrimSpace(t.EntityID) == "" {
		return fmt.Errorf("%w: entity id is required", ErrValidation)
	}
	return nil
}

func (t NotificationTarget) String() string {
	return fmt.Sprintf("%s/%s", t.EntityType, t.EntityID)
}
