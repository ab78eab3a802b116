// Package schema reads the DAO settings schema and the documents it
// describes.
//
// The schema is JSON Schema with four vendor extensions:
//
//	haEntityDomains     comma-separated domains; the field takes an entity ID
//	haEntityAllowValue  the entity field may also hold a literal
//	haSecret            the field takes a "!secret key" reference
//	haSecretAllowValue  the secret field may also hold a literal
//
// Fields flattens the schema against a document into the list of editable
// scalars the form shows. Documents decode into *Object (key order kept),
// []any, json.Number, string, bool and nil, and are edited with Get and Set.
package schema
