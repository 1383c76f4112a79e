package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"unicode/utf8"
)

// Identity is the tuple that binds a bundle checksum to one versioned
// snapshot. Field order here is the hashing order and must not change.
type Identity struct {
	RepoFullName string
	TicketPK     string
	TicketID     string
	Role         string
	Version      int
}

// ContentChecksum computes the sha256 hex digest of the canonical payload
// with the meta section excluded. It is a pure function of payload content:
// version and role never influence it.
func ContentChecksum(p Payload) (string, error) {
	canonical, err := Canonicalize(WithoutMeta(p))
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// BundleChecksum binds a content checksum to a bundle identity. Two bundles
// with identical content but different version or role hash differently.
func BundleChecksum(contentChecksum string, id Identity) string {
	input := fmt.Sprintf("%s|%s|%s|%s|%s|%d",
		contentChecksum, id.RepoFullName, id.TicketPK, id.TicketID, id.Role, id.Version)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// SectionMetrics returns the canonical-serialized character length of each
// top-level section, meta excluded. Lengths are runes, not bytes.
func SectionMetrics(p Payload) (map[string]int, error) {
	metrics := make(map[string]int, len(p))
	for name, section := range p {
		if name == MetaSection {
			continue
		}
		canonical, err := Canonicalize(section)
		if err != nil {
			return nil, fmt.Errorf("section %q: %w", name, err)
		}
		metrics[name] = utf8.RuneCount(canonical)
	}
	return metrics, nil
}

// TotalCharacters sums all section lengths. The total is the sum of
// per-section canonical lengths, not the length of the serialized whole;
// both sides of every comparison in Dossier use this same definition.
func TotalCharacters(metrics map[string]int) int {
	total := 0
	for _, n := range metrics {
		total += n
	}
	return total
}

// Stamp fills the meta section with both checksums for the given identity
// and returns the content checksum it computed.
func Stamp(p Payload, id Identity) (contentChecksum, bundleChecksum string, err error) {
	contentChecksum, err = ContentChecksum(p)
	if err != nil {
		return "", "", err
	}
	bundleChecksum = BundleChecksum(contentChecksum, id)
	p[MetaSection] = map[string]any{
		"content_checksum": contentChecksum,
		"bundle_checksum":  bundleChecksum,
	}
	return contentChecksum, bundleChecksum, nil
}
