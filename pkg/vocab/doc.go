// Package vocab defines the naming convention registry that gives folder
// tokens their access-control meaning.
//
// A Vocabulary enumerates the recognized department tokens, the
// hierarchy token families with their numeric ranks, the role-indicating
// folder names, the projects-root convention, and the defaults applied
// when a path carries no more specific information. It is built once at
// startup, either from the built-in definition or from a YAML file, and
// passed explicitly into the deriver and evaluator. It is never consulted
// as ambient global state, which keeps derivation deterministic and lets
// tests run with alternate vocabularies.
//
// All lookups normalize their input with Normalize (strip non-alphanumeric
// runes, uppercase) and match exactly. There is no fuzzy matching:
// a folder either is a recognized token or it is ignored.
//
// Conflicting mappings, such as one token claimed by two ranks or by two
// dimensions, are configuration errors. New refuses them outright rather
// than picking a winner.
//
//	v, err := vocab.Load("/etc/lantern/vocab.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	rank, ok := v.LookupHierarchy("Management") // 1, true
package vocab
