// Package logging provides a chainable structured-field builder on top of
// zap, matching the teacher's shared/logging field-builder idiom.
package logging

import "time"

// Fields is an ordered bag of structured log attributes. Each setter returns
// the same map so calls chain: logging.NewFields().Component("x").Operation("y").
type Fields map[string]interface{}

// NewFields returns an empty Fields ready for chaining.
func NewFields() Fields {
	return Fields{}
}

func (f Fields) Component(name string) Fields {
	f["component"] = name
	return f
}

func (f Fields) Operation(name string) Fields {
	f["operation"] = name
	return f
}

func (f Fields) Resource(kind, name string) Fields {
	f["resource_type"] = kind
	if name != "" {
		f["resource_name"] = name
	}
	return f
}

func (f Fields) Duration(d time.Duration) Fields {
	f["duration_ms"] = d.Milliseconds()
	return f
}

func (f Fields) Error(err error) Fields {
	if err != nil {
		f["error"] = err.Error()
	}
	return f
}

func (f Fields) UserID(id string) Fields {
	if id != "" {
		f["user_id"] = id
	}
	return f
}

func (f Fields) RequestID(id string) Fields {
	if id != "" {
		f["request_id"] = id
	}
	return f
}

func (f Fields) TraceID(id string) Fields {
	if id != "" {
		f["trace_id"] = id
	}
	return f
}

func (f Fields) StatusCode(code int) Fields {
	f["status_code"] = code
	return f
}

// Falcon-specific field helpers, following the same pattern as the generic
// ones above.

func (f Fields) ProjectID(id string) Fields {
	if id != "" {
		f["project_id"] = id
	}
	return f
}

func (f Fields) IssueID(id int64) Fields {
	f["issue_id"] = id
	return f
}

func (f Fields) AgentID(id string) Fields {
	if id != "" {
		f["agent_id"] = id
	}
	return f
}

func (f Fields) RunID(id string) Fields {
	if id != "" {
		f["run_id"] = id
	}
	return f
}

func (f Fields) Stage(stage string) Fields {
	if stage != "" {
		f["stage"] = stage
	}
	return f
}

// KeysAndValues flattens Fields into zap's SugaredLogger variadic
// (key, value, key, value, ...) calling convention.
func (f Fields) KeysAndValues() []interface{} {
	kv := make([]interface{}, 0, len(f)*2)
	for k, v := range f {
		kv = append(kv, k, v)
	}
	return kv
}
