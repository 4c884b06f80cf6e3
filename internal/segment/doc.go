// Package segment prepares outbound reply text for SMS delivery: flattening
// markdown to plain text and splitting long replies into ordered,
// transport-sized segments without breaking words or multi-byte characters.
package segment
