// Package protocol defines the JSON wire contract between the beacon
// client and the notification service.
//
// Every inbound payload is a single JSON object tagged with a "type"
// discriminator. Outbound commands use the same envelope shape.
// Unknown inbound types must be tolerated by callers for forward
// compatibility; DecodeMessage reports them with ErrUnknownType.
package protocol
