package domain

// NetworkIdentity is a configured egress route (e.g. a VPN tunnel) that can be
// brought up and down. Immutable, loaded from configuration.
type NetworkIdentity struct {
	Name   string   `yaml:"name"`
	Up     []string `yaml:"up"`
	Down   []string `yaml:"down"`
	Status []string `yaml:"status"`
}

// Credential is one account from the configured ordered credential set.
type Credential struct {
	ID     string `yaml:"id"`
	Secret string `yaml:"secret"`
	Label  string `yaml:"label"`
}
