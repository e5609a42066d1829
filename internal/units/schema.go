package units

import "github.com/invopop/jsonschema"

// Schema describes the unit definition file accepted by LoadDefinitions.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
	}
	schema := reflector.Reflect(new(DefinitionFile))
	schema.Title = "Unit Simulator Definitions"
	schema.Description = "Validates designer-authored unit types loaded from units_file"
	return schema
}
