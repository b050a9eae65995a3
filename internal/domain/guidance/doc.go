// Package guidance defines the domain model shared by the navigation and
// emergency loops: speech requests and their priorities, coordinates,
// button state, alert records, the failure taxonomy and the fixed phrases
// spoken to the user when something goes wrong.
package guidance
