/*
Package protocol implements the Grapevine trust-chain protocol.

Identities bind a unique username to a compound public key whose
signing half authenticates requests and whose agreement half receives
encrypted auth secrets. Every identity carries a replay counter: a
request behind the authentication guard presents the credential
"username-nonce", which is valid exactly once and advances the counter
atomically.

Relationships are unidirectional trust edges. An edge from A to B
carries A's auth secret sealed to B's agreement key; holding it lets B
extend proof chains through A.

Degree proofs form a DAG per phrase. A degree-1 proof roots a chain
from a user's secret phrase; a degree-n proof folds a live degree-(n-1)
proof owned by someone who granted the prover a relationship edge.
Each user keeps at most one live proof per phrase: a newer proof
retires the older one in place, preserving the references of any
proofs already built on it.

The Grapevine type composes the registry, the relationship ledger and
the proof chain into the operation set a server exposes.
*/
package protocol
