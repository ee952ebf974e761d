package enums

import "fmt"

// ActorType identifies who triggered a pipeline action.
type ActorType string

const (
	ActorTypeUser    ActorType = "user"
	ActorTypeSession ActorType = "session"
	ActorTypeSystem  ActorType = "system"
)

var validActorTypes = []ActorType{
	ActorTypeUser,
	ActorTypeSession,
	ActorTypeSystem,
}

// IsValid reports whether the value is a known ActorType.
func (a ActorType) IsValid() bool {
	for _, candidate := range validActorTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseActorType converts raw input into an ActorType.
func ParseActorType(value string) (ActorType, error) {
	for _, candidate := range validActorTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor type %q", value)
}
