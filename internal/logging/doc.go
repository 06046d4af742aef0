// Package logging builds the process-wide slog logger and defines the
// structured field conventions every stage uses. Stages never touch global
// logging state; they receive a logger (or an observer built on one) and
// tag records with a component attribute.
package logging
