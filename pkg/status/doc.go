// Package status defines the health value carried by every node of a status
// tree: Green < Yellow < Red in severity order, plus Unknown for values that
// have not been computed or could not be parsed.
//
// Parse is lenient (unrecognised text maps to Unknown) and is what configuration
// and rollup code use. ParseStrict rejects anything that is not one of the four
// names and is used at operator-facing boundaries (REST, gRPC, the REPL).
package status
