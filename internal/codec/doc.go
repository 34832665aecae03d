// Package codec parses and serialises the locker controller wire protocol.
//
// Controllers publish three inbound payload shapes on a single report topic,
// discriminated by their "type"/"cmd" fields:
//
//	Heartbeat:  {"type":"heartbeat","hostname":"F1-2","ip":...,"controllertype":...,"numlocks":2,"uptime":...,"time":...}
//	Access log: {"cmd":"log","type":"access","time":...,"isKnown":"true","access":"Always","username":...,"uid":...,"door":...}
//	Ack:        {"cmd":"sync","doorip":...,"lock":...,"uid":...}
//
// The gateway sends four outbound command shapes:
//
//	{"cmd":"openlock"|"maintenance"|"normal"|"sync","lock":<index>,"doorip":...,"uid":...}
//
// Decoding fails closed: a payload missing a required field for its declared
// shape is rejected with ErrMalformedMessage and never reaches the registry
// or evaluator.
//
// A heartbeat hostname encodes the device name and its unit count as
// "<NAME>-<N>" and fans out into N ordered unit IDs "<NAME>A".."<NAME>Z".
// The suffix must agree with the numlocks field; disagreement is an
// ErrProtocolViolation.
//
// The codec is stateless; all functions are safe for concurrent use.
package codec
