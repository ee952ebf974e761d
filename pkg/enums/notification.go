package enums

import "fmt"

// NotificationType identifies what an in-app notification is about.
type NotificationType string

const (
	NotificationTypeProposalAccepted NotificationType = "proposal_accepted"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeProposalAccepted,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}

// NotificationPriority orders notifications in the recipient's inbox.
type NotificationPriority string

const (
	NotificationPriorityHigh   NotificationPriority = "high"
	NotificationPriorityMedium NotificationPriority = "medium"
	NotificationPriorityLow    NotificationPriority = "low"
)

var validNotificationPriorities = []NotificationPriority{
	NotificationPriorityHigh,
	NotificationPriorityMedium,
	NotificationPriorityLow,
}

// IsValid checks whether the priority is known.
func (n NotificationPriority) IsValid() bool {
	for _, candidate := range validNotificationPriorities {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationPriority converts raw strings into NotificationPriority.
func ParseNotificationPriority(value string) (NotificationPriority, error) {
	for _, candidate := range validNotificationPriorities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification priority %q", value)
}
