package models

import (
	"errors"
	"fmt"
	"strings"
)

// Track roles a composition can be stored under
const (
	RoleBaseline = "baseline" // Uploaded material the model builds on
	RoleSparkles = "sparkles" // Complementary part generated by the model
)

// ErrInvalidRole is returned for a role other than baseline or sparkles
var ErrInvalidRole = errors.New("invalid role")

// ParseRole normalises a role name. "generated" is accepted as an alias for
// sparkles.
func ParseRole(role string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleBaseline, "":
		return RoleBaseline, nil
	case RoleSparkles, "sparkle", "generated":
		return RoleSparkles, nil
	default:
		return "", fmt.Errorf("%w: %q (allowed: %s, %s)", ErrInvalidRole, role, RoleBaseline, RoleSparkles)
	}
}
