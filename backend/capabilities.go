package backend

// Capability represents a capability that a backend can provide

import "slices"

type Capability string

const (
	// Core capability required by the reconciler
	CapabilityACL Capability = "acl"

	// Optional capabilities
	CapabilityContainers    Capability = "containers"
	CapabilityUPN           Capability = "upn"
	CapabilityRecursiveList Capability = "recursive_list"
)

func GetAllCapabilities() *Capabilities {
	return &Capabilities{
		Capabilities: []Capability{
			CapabilityACL,
			CapabilityContainers,
			CapabilityUPN,
			CapabilityRecursiveList,
		},
	}
}

// Capabilities describes what a backend supports
type Capabilities struct {
	Capabilities []Capability `json:"capabilities"`
}

// Contains checks if a capability is supported
func (c *Capabilities) Contains(cap Capability) bool {
	return slices.Contains(c.Capabilities, cap)
}
