// Package access decides what happens when a tag is scanned.
//
// A controller reports every scan as an access log; the evaluator
// resolves the door to a lock unit, applies the allow predicate and
// produces a decision. Granted scans schedule a delayed unlock through
// the dispatcher; everything else is recorded and refused. The scan
// report is purely informational on the wire, so a denied scan sends
// nothing back to the controller.
//
// The allow predicate is pluggable. The default grants known tags whose
// controller-side permission is "Always", matching what the controllers
// themselves enforce locally.
package access
