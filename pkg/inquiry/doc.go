// Package inquiry accepts form submissions. It applies admission control,
// persists the submission, hands it to the delivery dispatcher and exposes
// the HTTP endpoints for submitters and operators.
package inquiry
