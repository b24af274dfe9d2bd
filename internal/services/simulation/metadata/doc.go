// Package metadata serves the parameter tree and variable catalog exported by
// the country package as parameters.json and variables.json.
//
// Documents are kept as raw JSON and queried with gjson, so listing endpoints
// hand the original bytes back without a decode/encode round-trip.
package metadata
