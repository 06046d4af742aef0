// Package dataset models the persisted patient catalogue. Each pipeline
// stage loads the prior stage's document, derives a narrowed copy, and
// writes its own; the document is never mutated in place across stages.
package dataset
