// Package capability defines the kernel's static, closed capability
// table (spec §4.2): the mapping from (verb.class, object.type,
// verb.action) to a registered capability_id, and each capability's
// input-binding schema.
//
// The AST carries exactly four bindable raw strings per statement:
// object.id, subject.id, metadata.scope, and verb.action (spec §3
// fixes the AST to one of each node, so these are the only identifiers
// available to the compiler's "Input binding" step). Each capability
// schema claims a prefix of this fixed, ordered slot list — this is
// the kernel's documented resolution of the spec's otherwise
// underspecified multi-identifier binding (see DESIGN.md). Binding
// stays byte-for-byte verbatim; no slot value is transformed.
package capability

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ID is a closed, registered capability identifier, e.g. "FILE_MOVE".
type ID string

const (
	FileMove   ID = "FILE_MOVE"
	FileCopy   ID = "FILE_COPY"
	FileDelete ID = "FILE_DELETE"

	MediaPlay  ID = "MEDIA_PLAY"
	MediaPause ID = "MEDIA_PAUSE"
	MediaStop  ID = "MEDIA_STOP"
	MediaSeek  ID = "MEDIA_SEEK"

	AppLaunch ID = "APP_LAUNCH"
	AppFocus  ID = "APP_FOCUS"
	AppClose  ID = "APP_CLOSE"

	NavigateApp    ID = "NAVIGATE_APP"
	NavigateWindow ID = "NAVIGATE_WINDOW"
	NavigateURL    ID = "NAVIGATE_URL"
	NavigateFile   ID = "NAVIGATE_FILE"

	SearchFiles    ID = "SEARCH_FILES"
	SearchEmails   ID = "SEARCH_EMAILS"
	SearchDatasets ID = "SEARCH_DATASETS"
)

// triple is the static resolution key (verb.class, object.type, action).
type triple struct {
	Class  string
	Object string
	Action string
}

// Schema describes one capability's deterministic input binding: the
// ordered prefix of the AST's bindable slots it consumes, any
// schema-fixed constants (values implied by which capability matched,
// not carried in the AST), and the compiled JSON Schema used to check
// structural completeness of the resulting input map.
type Schema struct {
	ID        ID
	InputKeys []string          // consumed in slot order: object.id, subject.id, metadata.scope, verb.action
	Constants map[string]string // schema-fixed values merged into manifest.inputs
	validate  *jsonschema.Schema
}

// Validate checks that inputs satisfies the capability's required-keys
// JSON Schema. Returns nil on success.
func (s Schema) Validate(inputs map[string]interface{}) error {
	return s.validate.Validate(inputs)
}

var (
	table    = map[triple]ID{}
	registry = map[ID]Schema{}
)

// register compiles a capability whose inputs need only presence
// checking. Use registerWithEnums for a capability that also has one or
// more closed-world input domains.
func register(class, object, action string, id ID, inputKeys []string, constants map[string]string) {
	registerWithEnums(class, object, action, id, inputKeys, constants, nil)
}

// registerWithEnums compiles a capability's required-keys-plus-enum
// JSON Schema. enums maps an input key to its closed set of permitted
// values (spec §3 "every enumerated set is exhaustive"); a value
// outside the set fails Schema.Validate the same way a missing key
// does, so the compiler's input-binding step rejects it before a
// TaskManifest is ever produced.
func registerWithEnums(class, object, action string, id ID, inputKeys []string, constants map[string]string, enums map[string][]string) {
	table[triple{Class: class, Object: object, Action: action}] = id

	required := append([]string{}, inputKeys...)
	for k := range constants {
		required = append(required, k)
	}
	sort.Strings(required)

	doc := map[string]interface{}{
		"type":     "object",
		"required": toInterfaceSlice(required),
	}
	if len(enums) > 0 {
		properties := make(map[string]interface{}, len(enums))
		for key, allowed := range enums {
			properties[key] = map[string]interface{}{"enum": toInterfaceSlice(allowed)}
		}
		doc["properties"] = properties
	}
	schemaJSON, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}

	url := "mem://capability/" + string(id) + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, strings.NewReader(string(schemaJSON))); err != nil {
		panic(err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		panic(err)
	}

	registry[id] = Schema{ID: id, InputKeys: inputKeys, Constants: constants, validate: compiled}
}

func toInterfaceSlice(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func init() {
	register("MUTATE", "FILE", "MOVE", FileMove, []string{"source_path", "destination_path"}, nil)
	register("MUTATE", "FILE", "COPY", FileCopy, []string{"source_path", "destination_path"}, nil)
	register("MUTATE", "FILE", "DELETE", FileDelete, []string{"target_path"}, nil)

	register("TRANSFORM", "DEVICE", "PLAY", MediaPlay, []string{"media_uri", "target_device"}, nil)
	register("TRANSFORM", "DEVICE", "PAUSE", MediaPause, []string{"target_device"}, nil)
	register("TRANSFORM", "DEVICE", "STOP", MediaStop, []string{"target_device"}, nil)
	register("TRANSFORM", "DEVICE", "SEEK", MediaSeek, []string{"media_uri", "target_device", "position_seconds"}, nil)

	appEnvEnum := map[string][]string{"target_environment": {"desktop", "mobile", "tv"}}
	registerWithEnums("MUTATE", "DEVICE", "LAUNCH", AppLaunch, []string{"app_id", "target_environment"}, nil, appEnvEnum)
	registerWithEnums("MUTATE", "DEVICE", "FOCUS", AppFocus, []string{"app_id", "target_environment"}, nil, appEnvEnum)
	registerWithEnums("MUTATE", "DEVICE", "CLOSE", AppClose, []string{"app_id", "target_environment"}, nil, appEnvEnum)

	navigationEnums := map[string][]string{
		"navigation_mode": {"foreground", "background"},
		"focus_policy":    {"steal", "request", "none"},
	}
	registerWithEnums("TRANSFORM", "DEVICE", "NAVIGATE_APP", NavigateApp, []string{"target_id", "navigation_mode", "focus_policy"}, map[string]string{"target_type": "app"}, navigationEnums)
	registerWithEnums("TRANSFORM", "DEVICE", "NAVIGATE_WINDOW", NavigateWindow, []string{"target_id", "navigation_mode", "focus_policy"}, map[string]string{"target_type": "window"}, navigationEnums)
	registerWithEnums("TRANSFORM", "DEVICE", "NAVIGATE_URL", NavigateURL, []string{"target_id", "navigation_mode", "focus_policy"}, map[string]string{"target_type": "url"}, navigationEnums)
	registerWithEnums("TRANSFORM", "DEVICE", "NAVIGATE_FILE", NavigateFile, []string{"target_id", "navigation_mode", "focus_policy"}, map[string]string{"target_type": "file"}, navigationEnums)

	register("TRANSFORM", "FILE", "SEARCH", SearchFiles, []string{"query", "target_scope", "max_results"}, nil)
	register("TRANSFORM", "EMAIL", "SEARCH", SearchEmails, []string{"query", "target_scope", "max_results"}, nil)
	register("TRANSFORM", "DATASET", "SEARCH", SearchDatasets, []string{"query", "target_scope", "max_results"}, nil)
}

// Resolve implements the static (verb.class, object.type, verb.action)
// → capability_id mapping. ok is false for an unregistered triple.
func Resolve(class, object, action string) (ID, bool) {
	id, ok := table[triple{Class: class, Object: object, Action: action}]
	return id, ok
}

// Lookup returns the registered Schema for a capability ID.
func Lookup(id ID) (Schema, bool) {
	s, ok := registry[id]
	return s, ok
}
