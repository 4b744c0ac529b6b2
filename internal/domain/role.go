package domain

import (
	"fmt"
	"math/big"
	"strings"
)

// Role is a colony permission.
type Role uint8

const (
	RoleRecovery Role = iota
	RoleRoot
	RoleArbitration
	RoleArchitecture
	RoleArchitectureSubdomain
	RoleFunding
	RoleAdministration
)

var roleNames = map[Role]string{
	RoleRecovery:              "Recovery",
	RoleRoot:                  "Root",
	RoleArbitration:           "Arbitration",
	RoleArchitecture:          "Architecture",
	RoleArchitectureSubdomain: "ArchitectureSubdomain",
	RoleFunding:               "Funding",
	RoleAdministration:        "Administration",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}

	return fmt.Sprintf("Unknown Role (%d)", r)
}

// RolesFromBitmask decodes the bytes32 role set returned by getUserRoles.
// Bit i set means Role(i) is held.
func RolesFromBitmask(mask [32]byte) []Role {
	bits := new(big.Int).SetBytes(mask[:])

	var roles []Role
	for i := 0; i < bits.BitLen(); i++ {
		if bits.Bit(i) == 1 {
			roles = append(roles, Role(i))
		}
	}

	return roles
}

// JoinRoles renders roles as a comma separated list of names.
func JoinRoles(roles []Role) string {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.String())
	}

	return strings.Join(names, ", ")
}
