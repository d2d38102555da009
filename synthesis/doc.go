// Package synthesis provides the collaborators that turn merged agent evidence
// into a single repurposing hypothesis with a confidence score.
//
// Both implementations also act as core.Regenerator: a rejected hypothesis
// makes the next synthesis produce an alternative.
package synthesis
