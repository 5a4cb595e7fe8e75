package wire

import (
	"reflect"

	"github.com/go-openapi/strfmt"
	"github.com/invopop/jsonschema"
)

var reflector = jsonschema.Reflector{
	DoNotReference: true,
	Mapper: func(t reflect.Type) *jsonschema.Schema {
		if t == reflect.TypeOf(strfmt.DateTime{}) {
			return &jsonschema.Schema{Type: "string", Format: "date-time"}
		}
		return nil
	},
}

// Schema returns the JSON schema of the modern envelope.
func Schema() *jsonschema.Schema {
	return reflector.Reflect(&Envelope{})
}

// LegacySchema returns the JSON schema of the legacy envelope.
func LegacySchema() *jsonschema.Schema {
	return reflector.Reflect(&LegacyEnvelope{})
}
