// Package inspect defines the inspection domain: the report produced for a
// single URL, the collaborator interfaces the pipeline depends on, URL
// normalization, and the error taxonomy shared by every subsystem.
package inspect
