package supervisor

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ModuleSpec is the typed replacement for ad hoc string-splicing called
// for in §9: `class_path` names the module to instantiate, `name` is the
// component's key within its top-level DSL section, and `kwargs` are its
// constructor arguments.
type ModuleSpec struct {
	ClassPath string
	Name      string
	Kwargs    map[string]interface{}
}

// Section is one of the four top-level keys of the module configuration
// DSL (§6): "applications", "sensors", "event-sinks", "networks".
type Section string

const (
	SectionApplications Section = "applications"
	SectionSensors      Section = "sensors"
	SectionEventSinks   Section = "event-sinks"
	SectionNetworks     Section = "networks"
)

// Serialize targets the external subprocess command-line convention of
// §6: each section is a JSON object mapping component name to
// {class: "<module.path>", ...kwargs}, and the whole thing is wrapped in
// single quotes with embedded double quotes backslash-escaped so the
// shell passes it through intact. This is the one place in the repo a
// hand-rolled string-encoding routine is justified (§9): no pack library
// targets this external command-line convention, and isolating the
// quoting quirk to a single well-tested function is exactly what the
// design note asks for.
func Serialize(specs map[Section][]ModuleSpec) (string, error) {
	doc := make(map[string]map[string]map[string]interface{})
	for _, section := range []Section{SectionApplications, SectionSensors, SectionEventSinks, SectionNetworks} {
		components := make(map[string]map[string]interface{})
		for _, spec := range specs[section] {
			entry := make(map[string]interface{}, len(spec.Kwargs)+1)
			for k, v := range spec.Kwargs {
				entry[k] = v
			}
			entry["class"] = spec.ClassPath
			components[spec.Name] = entry
		}
		doc[string(section)] = components
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("supervisor: failed to marshal module config: %w", err)
	}

	escaped := strings.ReplaceAll(string(data), `"`, `\"`)
	return "'" + escaped + "'", nil
}
