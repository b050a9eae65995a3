// Package emergency watches the emergency button and sends a location alert
// to the guardians when it is pressed.
//
// A press must be stable for a number of polls before it counts, and a
// cooldown gate admits at most one alert per cooldown window no matter how
// often the input toggles. Failures while alerting are spoken and logged; the
// monitor stays armed.
package emergency
