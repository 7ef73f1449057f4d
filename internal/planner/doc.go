// Package planner turns a resolver decision and a requested visual
// quality into an ordered, fully materialized assembly plan.
//
// Plans are built before anything executes: every step, input, and
// work-area slot is fixed up front so a plan can be logged, inspected,
// and tested without touching the network.
package planner
