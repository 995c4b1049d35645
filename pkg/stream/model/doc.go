// Package model provides the data structures shared by the stream package and its options.
// It defines the step descriptors exchanged between the flow and its options, and the hooks an option implements.
package model
