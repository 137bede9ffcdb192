package artifact

import "fmt"

// Arch identifies a device CPU architecture using frida's release naming.
type Arch string

// Supported architectures.
const (
	ArchARM   Arch = "arm"
	ArchARM64 Arch = "arm64"
	ArchX86   Arch = "x86"
	ArchX8664 Arch = "x86_64"
)

// FromABI maps an Android ABI string (as reported by ro.product.cpu.abi) to an
// architecture. Unrecognized ABIs default to arm64, the common case on modern
// devices.
func FromABI(abi string) Arch {
	switch abi {
	case "arm64-v8a", "aarch64":
		return ArchARM64
	case "armeabi-v7a", "armeabi", "arm":
		return ArchARM
	case "x86_64":
		return ArchX8664
	case "x86":
		return ArchX86
	default:
		return ArchARM64
	}
}

// Parse validates an explicit architecture selector from configuration or
// flags. The "auto" selector is handled by the caller before parsing.
func Parse(value string) (Arch, error) {
	switch Arch(value) {
	case ArchARM, ArchARM64, ArchX86, ArchX8664:
		return Arch(value), nil
	default:
		return "", fmt.Errorf("unsupported architecture %q (want arm, arm64, x86 or x86_64)", value)
	}
}
