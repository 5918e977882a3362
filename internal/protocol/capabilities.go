package protocol

import (
	"encoding/json"
	"maps"
	"slices"
)

// ServerCapabilities is the capability set advertised by the server.
//
// Recognised capabilities are exposed as flags. Capabilities this client
// does not know are kept verbatim in Extra and written back unchanged by
// MarshalJSON.
type ServerCapabilities struct {
	Tools        bool
	ToolsChanged bool
	Resources    bool
	Prompts      bool
	Logging      bool
	Completions  bool
	Experimental bool

	Extra map[string]json.RawMessage
}

// listChanged is the option object shared by tools, resources, and prompts.
type listChanged struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *ServerCapabilities) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*c = ServerCapabilities{}

	for key, value := range raw {
		present := string(value) != "null"

		switch key {
		case "tools":
			c.Tools = present

			var opts listChanged
			if present && json.Unmarshal(value, &opts) == nil {
				c.ToolsChanged = opts.ListChanged
			}
		case "resources":
			c.Resources = present
		case "prompts":
			c.Prompts = present
		case "logging":
			c.Logging = present
		case "completions":
			c.Completions = present
		case "experimental":
			c.Experimental = present
		default:
			if c.Extra == nil {
				c.Extra = make(map[string]json.RawMessage)
			}

			c.Extra[key] = value
		}
	}

	return nil
}

// MarshalJSON implements json.Marshaler.
func (c ServerCapabilities) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Extra)+6)

	for key, value := range c.Extra {
		out[key] = value
	}

	empty := struct{}{}

	if c.Tools {
		out["tools"] = listChanged{ListChanged: c.ToolsChanged}
	}

	if c.Resources {
		out["resources"] = empty
	}

	if c.Prompts {
		out["prompts"] = empty
	}

	if c.Logging {
		out["logging"] = empty
	}

	if c.Completions {
		out["completions"] = empty
	}

	if c.Experimental {
		out["experimental"] = empty
	}

	return json.Marshal(out)
}

// Names returns the names of every advertised capability, sorted.
func (c ServerCapabilities) Names() []string {
	names := slices.Collect(maps.Keys(c.Extra))

	for name, set := range map[string]bool{
		"tools":        c.Tools,
		"resources":    c.Resources,
		"prompts":      c.Prompts,
		"logging":      c.Logging,
		"completions":  c.Completions,
		"experimental": c.Experimental,
	} {
		if set {
			names = append(names, name)
		}
	}

	slices.Sort(names)

	return names
}
