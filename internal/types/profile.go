package types

// ModuleProfile declares one crate slot: which bridge to talk to and where
// the module's register block sits on the backplane. Loaded from JSON or
// YAML profile files and validated against the embedded schema.
type ModuleProfile struct {
	Module    ModuleInfo   `json:"module" yaml:"module"`
	Bridge    BridgeConfig `json:"bridge" yaml:"bridge"`
	BaseAddr  uint32       `json:"base_address" yaml:"base_address"`
	PollMs    int          `json:"poll_interval_ms" yaml:"poll_interval_ms"`
	TimeoutMs int          `json:"timeout_ms" yaml:"timeout_ms"`
	Disabled  bool         `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

type ModuleInfo struct {
	Name        string `json:"name" yaml:"name"`
	Vendor      string `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	Model       string `json:"model,omitempty" yaml:"model,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

type BridgeConfig struct {
	Address string `json:"address" yaml:"address"` // host:port of the VME bridge
}
