package keymanager

import "fmt"

// Grants lists the capabilities each operation holds on the logical key.
type Grants map[Operation][]Capability

// DefaultGrants is the least-privilege baseline: create may encrypt and decrypt,
// get may only decrypt, list and approve hold nothing.
func DefaultGrants() Grants {
	return Grants{
		OpCreate: {CapabilityEncrypt, CapabilityDecrypt},
		OpGet:    {CapabilityDecrypt},
	}
}

// ParseGrants converts configuration values; an empty input yields DefaultGrants.
func ParseGrants(raw map[string][]string) (Grants, error) {
	if len(raw) == 0 {
		return DefaultGrants(), nil
	}
	grants := make(Grants, len(raw))
	for op, caps := range raw {
		operation := Operation(op)
		switch operation {
		case OpCreate, OpGet, OpList, OpApprove:
		default:
			return nil, fmt.Errorf("unknown operation %q in grants", op)
		}
		for _, c := range caps {
			capability := Capability(c)
			if capability != CapabilityEncrypt && capability != CapabilityDecrypt {
				return nil, fmt.Errorf("unknown capability %q for operation %q", c, op)
			}
			grants[operation] = append(grants[operation], capability)
		}
	}
	return grants, nil
}

func (g Grants) Allows(op Operation, capability Capability) bool {
	for _, c := range g[op] {
		if c == capability {
			return true
		}
	}
	return false
}

// Scoped hands out crypto capabilities per operation. An operation without a grant
// simply gets no capability back.
type Scoped struct {
	keys   KeyManager
	grants Grants
}

func NewScoped(keys KeyManager, grants Grants) *Scoped {
	if grants == nil {
		grants = DefaultGrants()
	}
	return &Scoped{keys: keys, grants: grants}
}

func (s *Scoped) Encrypter(op Operation) (Encrypter, bool) {
	if s.keys == nil || !s.grants.Allows(op, CapabilityEncrypt) {
		return nil, false
	}
	return s.keys, true
}

func (s *Scoped) Decrypter(op Operation) (Decrypter, bool) {
	if s.keys == nil || !s.grants.Allows(op, CapabilityDecrypt) {
		return nil, false
	}
	return s.keys, true
}
