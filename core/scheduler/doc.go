// Package scheduler turns a charger session and its schedules into the
// runtime intervals an appliance may use within the planning horizon.
// Plans are pure functions of their input and can be recomputed every tick.
package scheduler
