package metadata

import (
	"fmt"
	"strings"
)

const maxTypeNameDepth = 8

// TypeName renders a readable name for id, e.g. Compact<u128> or Vec<AccountId32>
func (r *Registry) TypeName(id TypeID) string {
	return r.typeName(id, 0)
}

func (r *Registry) typeName(id TypeID, depth int) string {
	t, ok := r.types[id]
	if !ok {
		return fmt.Sprintf("<unknown #%d>", id)
	}

	if depth > maxTypeNameDepth {
		return "..."
	}

	if len(t.Path) > 0 {
		name := t.Path[len(t.Path)-1]

		var params []string

		for _, p := range t.Params {
			if p.Type != nil {
				params = append(params, r.typeName(*p.Type, depth+1))
			}
		}

		if len(params) > 0 {
			name += "<" + strings.Join(params, ", ") + ">"
		}

		return name
	}

	switch t.Def.Kind {
	case KindPrimitive:
		return t.Def.Primitive.String()
	case KindSequence:
		return "Vec<" + r.typeName(t.Def.Elem, depth+1) + ">"
	case KindArray:
		return fmt.Sprintf("[%s; %d]", r.typeName(t.Def.Elem, depth+1), t.Def.Len)
	case KindCompact:
		return "Compact<" + r.typeName(t.Def.Elem, depth+1) + ">"
	case KindTuple:
		parts := make([]string, len(t.Def.Tuple))
		for i, member := range t.Def.Tuple {
			parts[i] = r.typeName(member, depth+1)
		}

		return "(" + strings.Join(parts, ", ") + ")"
	case KindBitSequence:
		return "BitVec"
	default:
		return t.Name()
	}
}

func (r *Registry) formatArgs(args []Arg) string {
	parts := make([]string, len(args))

	for i, a := range args {
		if a.Name != "" {
			parts[i] = a.Name + ": " + r.TypeName(a.Type)
		} else {
			parts[i] = r.TypeName(a.Type)
		}
	}

	return strings.Join(parts, ", ")
}

// FormatCall renders a call signature, e.g. transfer(dest: AccountId32, value: Compact<u128>)
func (r *Registry) FormatCall(c *CallDescriptor) string {
	return fmt.Sprintf("%s(%s)", c.Name, r.formatArgs(c.Args))
}

func (r *Registry) FormatEvent(e *EventDescriptor) string {
	return fmt.Sprintf("%s(%s)", e.Name, r.formatArgs(e.Args))
}

// Pretty lists every module with its calls, events, errors, storage entries and constants
func (r *Registry) Pretty() string {
	var b strings.Builder

	fmt.Fprintf(&b, "metadata v%d, %d types, %d modules, extrinsic v%d\n",
		r.Version, len(r.typeIDs), len(r.modules), r.Extrinsic.Version)

	for _, m := range r.modules {
		r.prettyModule(&b, m)
	}

	return b.String()
}

// PrettyModule is Pretty restricted to a single module
func (r *Registry) PrettyModule(m *Module) string {
	var b strings.Builder

	r.prettyModule(&b, m)

	return b.String()
}

func (r *Registry) prettyModule(b *strings.Builder, m *Module) {
	fmt.Fprintf(b, "\n[%d] %s\n", m.Index, m.Name)

	if len(m.Calls) > 0 {
		b.WriteString("  calls:\n")

		for _, c := range m.Calls {
			fmt.Fprintf(b, "    %d %s\n", c.Index, r.FormatCall(c))
		}
	}

	if len(m.Events) > 0 {
		b.WriteString("  events:\n")

		for _, e := range m.Events {
			fmt.Fprintf(b, "    %d %s\n", e.Index, r.FormatEvent(e))
		}
	}

	if len(m.Errors) > 0 {
		b.WriteString("  errors:\n")

		for _, e := range m.Errors {
			fmt.Fprintf(b, "    %d %s\n", e.Index, e.Name)
		}
	}

	if len(m.Storage) > 0 {
		b.WriteString("  storage:\n")

		for _, s := range m.Storage {
			if s.IsMap {
				fmt.Fprintf(b, "    %s: map %s => %s (%s)\n", s.Name, r.TypeName(s.Key), r.TypeName(s.Value), s.Modifier)
			} else {
				fmt.Fprintf(b, "    %s: %s (%s)\n", s.Name, r.TypeName(s.Value), s.Modifier)
			}
		}
	}

	if len(m.Constants) > 0 {
		b.WriteString("  constants:\n")

		for _, c := range m.Constants {
			fmt.Fprintf(b, "    %s: %s\n", c.Name, r.TypeName(c.Type))
		}
	}
}
