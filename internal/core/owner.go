package core

import "strings"

// Owner name fields arrive free-form: "First Last", "Last, First",
// "Ana & Luis García", "Ana y Luis García". These helpers extract what the
// dues roster needs for display and sorting.

// FirstOwner returns the first owner from a possibly multi-owner string.
func FirstOwner(owners string) string {
	owners = strings.TrimSpace(owners)
	for _, sep := range []string{" & ", " y ", " / ", ";"} {
		if i := strings.Index(owners, sep); i >= 0 {
			return strings.TrimSpace(owners[:i])
		}
	}
	return owners
}

// OwnerLastName extracts the surname used for roster sorting. Comma format
// ("García, Ana") takes the part before the comma; otherwise the last
// whitespace-separated token of the first owner wins.
func OwnerLastName(owners string) string {
	name := FirstOwner(owners)
	if i := strings.Index(name, ","); i >= 0 {
		return strings.TrimSpace(name[:i])
	}
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
