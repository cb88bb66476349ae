// Package charger implements the EV charger state machine.
//
// A Session holds everything known about the current connection cycle. It is
// advanced by the pure Step function from an Observation of the live sources;
// Step returns the meter actions the Charger driver must apply. The driver
// owns the collaborators (vehicle state, energy meter, state of charge) and is
// ticked serially by its appliance.
package charger
