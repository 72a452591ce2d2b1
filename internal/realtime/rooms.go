package realtime

import (
	"fmt"
	"strings"

	"github.com/EduBridge-2025/advisory-service/internal/models"
)

// Room name constructors. Clients never supply arbitrary room names; every
// joinable room is minted by one of these.

func UserRoom(userID string) string {
	return "user:" + userID
}

func RoleRoom(role models.UserRole) string {
	return "role:" + string(role)
}

func StudentRoom(studentID string) string {
	return "student:" + studentID
}

func ApplicationRoom(applicationID string) string {
	return "application:" + applicationID
}

func ServiceRequestRoom(serviceRequestID string) string {
	return "service_request:" + serviceRequestID
}

func ChatRoom(serviceRequestID string) string {
	return "chat:" + serviceRequestID
}

var roomPrefixes = map[string]bool{
	"user":            true,
	"role":            true,
	"student":         true,
	"application":     true,
	"service_request": true,
	"chat":            true,
}

// ParseRoom splits a room name into its prefix and entity ID. Unknown
// prefixes and malformed names are rejected.
func ParseRoom(room string) (prefix, id string, err error) {
	parts := strings.SplitN(room, ":", 2)
	if len(parts) != 2 || parts[1] == "" || !roomPrefixes[parts[0]] {
		return "", "", fmt.Errorf("unknown room %q", room)
	}
	return parts[0], parts[1], nil
}
