package tipping

import (
	"tipvault/core/events"
	"tipvault/core/types"
)

const (
	// EventTypePlatformInitialized is emitted once when the platform record is seeded.
	EventTypePlatformInitialized = "tipping.platform.initialized"
	// EventTypeCreatorRegistered is emitted when an account registers a profile.
	EventTypeCreatorRegistered = "tipping.creator.registered"
	// EventTypeProfileUpdated is emitted when a creator rewrites profile text.
	EventTypeProfileUpdated = "tipping.creator.updated"
	// EventTypeTipSent is emitted for every accepted tip.
	EventTypeTipSent = "tipping.tip.sent"
	// EventTypeRevenueSplitSet is emitted when a creator configures a collaborator split.
	EventTypeRevenueSplitSet = "tipping.split.set"
	// EventTypeRevenueSplitRemoved is emitted when a creator clears their split.
	EventTypeRevenueSplitRemoved = "tipping.split.removed"
	// EventTypeBadgeMinted is emitted when an appreciation token is minted.
	EventTypeBadgeMinted = "tipping.badge.minted"
	// EventTypePlatformPaused is emitted when the circuit breaker engages.
	EventTypePlatformPaused = "tipping.platform.paused"
	// EventTypePlatformUnpaused is emitted when the circuit breaker releases.
	EventTypePlatformUnpaused = "tipping.platform.unpaused"
	// EventTypeAdminPending is emitted when an admin handoff is proposed.
	EventTypeAdminPending = "tipping.admin.pending"
	// EventTypeAdminAccepted is emitted when the pending admin accepts.
	EventTypeAdminAccepted = "tipping.admin.accepted"
	// EventTypeParamsUpdated is emitted when an admin rewrites a platform parameter.
	EventTypeParamsUpdated = "tipping.params.updated"
	// EventTypeFeesWithdrawn is emitted when accumulated fees leave the vault.
	EventTypeFeesWithdrawn = "tipping.fees.withdrawn"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

// PlatformInitializedEvent announces the one-time platform bootstrap.
func PlatformInitializedEvent(admin string) *types.Event {
	return &types.Event{
		Type: EventTypePlatformInitialized,
		Attributes: map[string]string{
			"admin": admin,
		},
	}
}

// CreatorRegisteredEvent announces a new creator profile.
func CreatorRegisteredEvent(creator string, name string, category string) *types.Event {
	return &types.Event{
		Type: EventTypeCreatorRegistered,
		Attributes: map[string]string{
			"creator":  creator,
			"name":     name,
			"category": category,
		},
	}
}

// ProfileUpdatedEvent announces a profile text rewrite.
func ProfileUpdatedEvent(creator string, name string) *types.Event {
	return &types.Event{
		Type: EventTypeProfileUpdated,
		Attributes: map[string]string{
			"creator": creator,
			"name":    name,
		},
	}
}

// TipSentEvent carries the full division of one accepted tip.
func TipSentEvent(creator, supporter, amount, fee, creatorShare, collabShare, message string) *types.Event {
	return &types.Event{
		Type: EventTypeTipSent,
		Attributes: map[string]string{
			"creator":      creator,
			"supporter":    supporter,
			"amount":       amount,
			"fee":          fee,
			"creatorShare": creatorShare,
			"collabShare":  collabShare,
			"message":      message,
		},
	}
}

// RevenueSplitSetEvent announces a collaborator split configuration.
func RevenueSplitSetEvent(creator, collaborator, name, percent string) *types.Event {
	return &types.Event{
		Type: EventTypeRevenueSplitSet,
		Attributes: map[string]string{
			"creator":      creator,
			"collaborator": collaborator,
			"name":         name,
			"percent":      percent,
		},
	}
}

// RevenueSplitRemovedEvent announces a cleared split.
func RevenueSplitRemovedEvent(creator string) *types.Event {
	return &types.Event{
		Type: EventTypeRevenueSplitRemoved,
		Attributes: map[string]string{
			"creator": creator,
		},
	}
}

// BadgeMintedEvent announces a freshly minted appreciation token.
func BadgeMintedEvent(tokenID, creator, supporter, tier, tierName string) *types.Event {
	return &types.Event{
		Type: EventTypeBadgeMinted,
		Attributes: map[string]string{
			"tokenId":   tokenID,
			"creator":   creator,
			"supporter": supporter,
			"tier":      tier,
			"tierName":  tierName,
		},
	}
}

// PlatformPausedEvent announces the circuit breaker engaging.
func PlatformPausedEvent(admin string) *types.Event {
	return &types.Event{
		Type: EventTypePlatformPaused,
		Attributes: map[string]string{
			"admin": admin,
		},
	}
}

// PlatformUnpausedEvent announces the circuit breaker releasing.
func PlatformUnpausedEvent(admin string) *types.Event {
	return &types.Event{
		Type: EventTypePlatformUnpaused,
		Attributes: map[string]string{
			"admin": admin,
		},
	}
}

// AdminPendingEvent announces a proposed admin handoff.
func AdminPendingEvent(current string, pending string) *types.Event {
	return &types.Event{
		Type: EventTypeAdminPending,
		Attributes: map[string]string{
			"current": current,
			"pending": pending,
		},
	}
}

// AdminAcceptedEvent announces a completed admin handoff.
func AdminAcceptedEvent(previous string, admin string) *types.Event {
	return &types.Event{
		Type: EventTypeAdminAccepted,
		Attributes: map[string]string{
			"previous": previous,
			"admin":    admin,
		},
	}
}

// ParamsUpdatedEvent announces a parameter rewrite.
func ParamsUpdatedEvent(param string, value string) *types.Event {
	return &types.Event{
		Type: EventTypeParamsUpdated,
		Attributes: map[string]string{
			"param": param,
			"value": value,
		},
	}
}

// FeesWithdrawnEvent announces an admin fee withdrawal.
func FeesWithdrawnEvent(admin, amount, remaining string) *types.Event {
	return &types.Event{
		Type: EventTypeFeesWithdrawn,
		Attributes: map[string]string{
			"admin":     admin,
			"amount":    amount,
			"remaining": remaining,
		},
	}
}
