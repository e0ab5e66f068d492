package config

import "sort"

// BlockPreset returns the block list for a named preset. Presets are used
// when no configuration file exists, and with the -preset flag.
// If the name is not recognized, the "default" preset is returned.
func BlockPreset(name string) []BlockConfig {
	switch name {
	case "minimal":
		return minimalPreset()
	case "laptop":
		return laptopPreset()
	case "ops":
		return opsPreset()
	default:
		return defaultPreset()
	}
}

// PresetNames lists the recognised preset names.
func PresetNames() []string {
	names := []string{"default", "minimal", "laptop", "ops"}
	sort.Strings(names)
	return names
}

func block(typ string, fields Fields) BlockConfig {
	if fields == nil {
		fields = Fields{}
	}
	return BlockConfig{Type: typ, Fields: fields}
}

// defaultPreset: [load] [memory] [temperature] [time]
func defaultPreset() []BlockConfig {
	return []BlockConfig{
		block("load", nil),
		block("memory", nil),
		block("temperature", nil),
		block("time", nil),
	}
}

// minimalPreset: [time]
func minimalPreset() []BlockConfig {
	return []BlockConfig{
		block("time", nil),
	}
}

// laptopPreset adds CPU and a battery-friendly slower disk poll.
//
//	[cpu] [memory] [disk /] [net] [temperature] [time]
func laptopPreset() []BlockConfig {
	return []BlockConfig{
		block("cpu", nil),
		block("memory", nil),
		block("disk", Fields{"path": "/", "interval": "60s"}),
		block("net", nil),
		block("temperature", nil),
		block("time", nil),
	}
}

// opsPreset is for workstations attached to a tailnet and a cluster.
//
//	[tailscale] [kube] [load] [time]
func opsPreset() []BlockConfig {
	return []BlockConfig{
		block("tailscale", nil),
		block("kube", nil),
		block("load", nil),
		block("time", Fields{"format": "%F %R"}),
	}
}
