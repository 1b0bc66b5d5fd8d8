// Package cleaning turns a raw logistics CSV into a validated dataset.
//
// The Validator types every cell and forces bounded metrics into their
// domain, degrading unparsable input to nulls. The Resolver then drops
// records without a usable timestamp or location, imputes the remaining
// gaps and removes exact duplicates. Both stages return new frames and a
// report of what they changed.
package cleaning
