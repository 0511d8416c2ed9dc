// Package file keeps questionnaires and responses on the local filesystem.
//
// Questionnaires are read from a directory of .json, .yaml or .yml documents. Responses are
// written as one JSON file per session, replaced atomically on every save.
package file
