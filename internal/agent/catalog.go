package agent

import (
	"strings"

	dErrors "cynergists/pkg/domain-errors"
)

// Agent describes one persona sold through the portal.
type Agent struct {
	// Name is the canonical lowercase identifier used in routes, storage
	// keys, and audit entries.
	Name string

	// Aliases are alternate names accepted on input and mapped to Name.
	// Legacy persona names live here so stored history keeps working.
	Aliases []string

	// Primary marks the agent whose onboarding conversation unlocks the
	// rest of the platform. Exactly one agent is primary.
	Primary bool

	// RequiresOnboarding additionally gates this agent behind its own
	// completed onboarding. Every non-primary agent already requires the
	// primary onboarding regardless of this flag.
	RequiresOnboarding bool

	Tagline string
}

// Catalog is the fixed set of personas. Adding an agent here is the only
// change needed for gating, routing, and onboarding to pick it up.
type Catalog struct {
	agents  []Agent
	byName  map[string]*Agent
	primary *Agent
}

// DefaultCatalog returns the production persona set.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog([]Agent{
		{
			Name:    "apex",
			Tagline: "Sales pipeline and outreach",
		},
		{
			Name:               "arsenal",
			RequiresOnboarding: true,
			Tagline:            "Marketing content and campaigns",
		},
		{
			Name:    "cynessa",
			Aliases: []string{"iris"},
			Primary: true,
			Tagline: "Business onboarding and setup",
		},
		{
			Name:               "carbon",
			RequiresOnboarding: true,
			Tagline:            "Operations and reporting",
		},
	})
	if err != nil {
		panic(err)
	}
	return c
}

// NewCatalog builds a catalog and validates its shape: canonical names and
// aliases must be unique, and exactly one agent must be primary.
func NewCatalog(agents []Agent) (*Catalog, error) {
	c := &Catalog{
		agents: agents,
		byName: make(map[string]*Agent, len(agents)),
	}
	for i := range c.agents {
		a := &c.agents[i]
		a.Name = strings.ToLower(strings.TrimSpace(a.Name))
		if a.Name == "" {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "agent name cannot be empty")
		}
		if _, exists := c.byName[a.Name]; exists {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "duplicate agent name: "+a.Name)
		}
		c.byName[a.Name] = a
		for _, alias := range a.Aliases {
			alias = strings.ToLower(strings.TrimSpace(alias))
			if _, exists := c.byName[alias]; exists {
				return nil, dErrors.New(dErrors.CodeInvariantViolation, "duplicate agent alias: "+alias)
			}
			c.byName[alias] = a
		}
		if a.Primary {
			if c.primary != nil {
				return nil, dErrors.New(dErrors.CodeInvariantViolation, "catalog must have exactly one primary agent")
			}
			c.primary = a
		}
	}
	if c.primary == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "catalog must have exactly one primary agent")
	}
	return c, nil
}

// Resolve maps a case-insensitive name or alias to its agent.
func (c *Catalog) Resolve(name string) (*Agent, error) {
	a, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "unknown agent: "+name)
	}
	return a, nil
}

// Primary returns the agent whose onboarding gates the platform.
func (c *Catalog) Primary() *Agent {
	return c.primary
}

// All returns every agent in catalog order.
func (c *Catalog) All() []Agent {
	out := make([]Agent, len(c.agents))
	copy(out, c.agents)
	return out
}
