package snapshot

import "github.com/lumen-lang/lumen/internal/gc"

// resolveObjectName implements §4.4 step 5's display-name algorithm:
// a Proxy is always named literally "Proxy"; otherwise an own-name or
// constructor-name hint wired in through the class descriptor wins;
// otherwise the class's canonical name; otherwise "Object" — the
// class-descriptor-less fallback for objects no collaborator
// described at all.
func resolveObjectName(o *gc.Object) string {
	desc := o.ClassDescriptor()

	if desc != nil && desc.ClassName == "Proxy" {
		return "Proxy"
	}

	if desc != nil && desc.NameHint != nil {
		if name, ok := desc.NameHint(o); ok && name != "" {
			return name
		}
	}

	if desc != nil && desc.ClassName != "" {
		return desc.ClassName
	}

	return "Object"
}

// contextDisplayName names the root node. The Context has no class
// descriptor of its own (§3); scenario 6 (§8) accepts either "global"
// or the realm's own display name, so absent anything more specific
// this always reports "global".
func contextDisplayName(ctx *gc.Context) string {
	return "global"
}
