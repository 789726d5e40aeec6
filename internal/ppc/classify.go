package ppc

import "strings"

// IsStore reports whether a mnemonic writes memory.
func IsStore(mnemonic string) bool {
	return strings.HasPrefix(mnemonic, "st") || strings.HasPrefix(mnemonic, "psq_st")
}

// IsLoad reports whether a mnemonic reads memory. Immediate loads (li, lis)
// only look like loads.
func IsLoad(mnemonic string) bool {
	if strings.HasPrefix(mnemonic, "psq_l") {
		return true
	}
	if mnemonic == "li" || mnemonic == "lis" {
		return false
	}
	return strings.HasPrefix(mnemonic, "l")
}

// IsMemory reports whether a mnemonic is a load or a store.
func IsMemory(mnemonic string) bool {
	return IsLoad(mnemonic) || IsStore(mnemonic)
}

// excludedPrefixes are comparisons, cache and table maintenance and special
// register moves. Their first register operand is not a destination.
var excludedPrefixes = []string{"dc", "ic", "mt", "c", "fc"}

// IsExcluded reports whether a mnemonic belongs to the class the tracker
// never reports outside verbose mode.
func IsExcluded(mnemonic string) bool {
	for _, p := range excludedPrefixes {
		if strings.HasPrefix(mnemonic, p) {
			return true
		}
	}
	return false
}

// IsCombiner reports whether a mnemonic merges new bits into the existing
// destination value instead of replacing it.
func IsCombiner(mnemonic string) bool {
	return strings.HasPrefix(mnemonic, "ins") || strings.HasPrefix(mnemonic, "rlwi")
}
