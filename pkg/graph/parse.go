package graph

import "strings"

// ParsedNode is the result of parsing a raw node string, including the
// legacy "@owner"/"#attribute" affixes accepted on input for backward
// compatibility with earlier string-encoded variants (see §9 of the
// design notes: the canonical model expresses ownership/attribute via
// edges, not via the key itself).
type ParsedNode struct {
	IsCharacter bool
	Name        string // canonical name: bracketed for characters, plain for objects
	Owner       string // object only; "" if absent
	Attribute   string // object only; "" if absent
}

// ParseNodeString parses a raw node string. A string wrapped in angle
// brackets is a character and is returned verbatim (brackets kept) as
// Name. Otherwise it is an object; optional "@owner" and "#attribute"
// affixes, in either order, are split off into Owner/Attribute and Name is
// left holding the bare object name.
func ParseNodeString(s string) ParsedNode {
	s = strings.TrimSpace(s)
	if s == "" {
		return ParsedNode{}
	}
	if isBracketed(s) {
		return ParsedNode{IsCharacter: true, Name: s}
	}
	name, owner, attribute := parseObjectAffixes(s)
	return ParsedNode{Name: name, Owner: owner, Attribute: attribute}
}

// parseObjectAffixes splits a raw object string into (name, owner,
// attribute), handling "name@owner", "name#attribute",
// "name@owner#attribute", and "name#attribute@owner".
func parseObjectAffixes(s string) (name, owner, attribute string) {
	atPos := strings.IndexByte(s, '@')
	hashPos := strings.IndexByte(s, '#')

	switch {
	case atPos >= 0 && hashPos >= 0:
		if atPos < hashPos {
			parts := strings.SplitN(s, "@", 2)
			name = parts[0]
			rest := parts[1]
			if idx := strings.IndexByte(rest, '#'); idx >= 0 {
				owner, attribute = rest[:idx], rest[idx+1:]
			} else {
				owner = rest
			}
		} else {
			parts := strings.SplitN(s, "#", 2)
			name = parts[0]
			rest := parts[1]
			if idx := strings.IndexByte(rest, '@'); idx >= 0 {
				attribute, owner = rest[:idx], rest[idx+1:]
			} else {
				attribute = rest
			}
		}
	case atPos >= 0:
		parts := strings.SplitN(s, "@", 2)
		name, owner = parts[0], parts[1]
	case hashPos >= 0:
		parts := strings.SplitN(s, "#", 2)
		name, attribute = parts[0], parts[1]
	default:
		name = s
	}
	return name, owner, attribute
}

// FormatNodeForNaturalLanguage renders a canonical node name for display:
// characters lose their brackets; objects reconstruct any legacy
// owner/attribute affixes as "owner's attribute name".
func FormatNodeForNaturalLanguage(nodeStr string) string {
	nodeStr = strings.TrimSpace(nodeStr)
	if nodeStr == "" {
		return ""
	}
	if isBracketed(nodeStr) {
		return unbracket(nodeStr)
	}

	name, owner, attribute := parseObjectAffixes(nodeStr)
	if isBracketed(owner) {
		owner = unbracket(owner)
	}

	var parts []string
	if owner != "" {
		parts = append(parts, owner+"'s")
	}
	if attribute != "" {
		parts = append(parts, attribute)
	}
	parts = append(parts, name)

	return strings.Join(parts, " ")
}
