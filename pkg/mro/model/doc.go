// Package model provides the data structures shared by the MRO parser, the stage registry and
// the phase execution adapter.
// It defines the type vocabulary of the language, the fields declared by stages and pipelines,
// the stages and pipelines themselves, the execution phases, and the errors raised when a
// caller asks for something the model does not contain.
package model
