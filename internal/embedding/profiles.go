package embedding

import "fmt"

// builtinProfile returns the base configuration for one of the three
// built-in presets spec §4.E names, before hardware-based resolution of
// any "auto" fields.
func builtinProfile(preset Preset) Profile {
	switch preset {
	case PresetLight:
		return Profile{
			Name:         string(PresetLight),
			Model:        "bge-small-en-v1.5",
			ModelVersion: "v1",
			Backend:      BackendONNX,
			Device:       DeviceAuto,
			Quantization: QuantInt8,
			BatchSize:    8,
			Dimensions:   384,
		}
	case PresetPerformance:
		return Profile{
			Name:         string(PresetPerformance),
			Model:        "bge-large-en-v1.5",
			ModelVersion: "v1",
			Backend:      BackendONNX,
			Device:       DeviceAuto,
			Quantization: QuantFP16,
			BatchSize:    64,
			Dimensions:   1024,
		}
	case PresetBalanced:
		fallthrough
	default:
		return Profile{
			Name:         string(PresetBalanced),
			Model:        "bge-base-en-v1.5",
			ModelVersion: "v1",
			Backend:      BackendONNX,
			Device:       DeviceAuto,
			Quantization: QuantInt8,
			BatchSize:    32,
			Dimensions:   768,
		}
	}
}

// ResolveProfile fills in "auto" Device/Quantization and downscales
// BatchSize according to detected hardware, per spec §4.E. It never
// mutates the input profile.
func ResolveProfile(p Profile, caps HardwareCapabilities) Profile {
	resolved := p

	if resolved.Device == DeviceAuto || resolved.Device == "" {
		resolved.Device = resolveDevice(caps)
	}

	if resolved.Quantization == QuantAuto || resolved.Quantization == "" {
		resolved.Quantization = resolveQuantization(caps, resolved.Device)
	}

	resolved.BatchSize = downscaleBatch(resolved.BatchSize, caps.FreeRAM)

	return resolved
}

func resolveDevice(caps HardwareCapabilities) Device {
	if caps.GPU == nil {
		return DeviceCPU
	}
	switch caps.GPU.Vendor {
	case "apple":
		return DeviceMPS
	case "nvidia":
		return DeviceCUDA
	default:
		return DeviceCPU
	}
}

func resolveQuantization(caps HardwareCapabilities, device Device) Quantization {
	if device == DeviceCPU {
		return QuantInt8
	}
	const gib = int64(1) << 30
	if caps.FreeRAM > 0 && caps.FreeRAM < 4*gib {
		return QuantInt8
	}
	return QuantFP16
}

// downscaleBatch halves batchSize for every doubling below a 4GiB-free
// baseline, never going below 1.
func downscaleBatch(batchSize int, freeRAM int64) int {
	if freeRAM <= 0 {
		return batchSize
	}
	const baseline = int64(4) << 30
	size := batchSize
	threshold := baseline
	for freeRAM < threshold && size > 1 {
		size /= 2
		threshold /= 2
	}
	return size
}

// PresetByName resolves a preset name to its base profile, or an error if
// the name is not one of the three built-ins.
func PresetByName(name string) (Profile, error) {
	switch Preset(name) {
	case PresetLight, PresetBalanced, PresetPerformance:
		return builtinProfile(Preset(name)), nil
	default:
		return Profile{}, fmt.Errorf("embedding: unknown preset %q", name)
	}
}
