package domain

// Resource is anything with a unique id that a registry can store.
type Resource interface {
	ResourceKind() string
	ResourceID() string
}

// Reference names one outgoing reference of a resource.
type Reference struct {
	Field string
	Ref   Ref
}

// Referrer is implemented by resources whose references the registry must resolve before writing.
type Referrer interface {
	References() []Reference
}

// Command is a transaction processed exactly once against registry state.
type Command interface {
	CommandClass() string
	Validate() error
}

func collectRefs(refs []Reference, field string, values ...Ref) []Reference {
	for _, ref := range values {
		if ref.IsZero() {
			continue
		}
		refs = append(refs, Reference{Field: field, Ref: ref})
	}
	return refs
}
