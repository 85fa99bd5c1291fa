// Package zapgate correlates Lightning payments with Nostr notes and emits
// anonymous zaps on behalf of payers who never reveal an identity.
//
// A client session enables zapping for a note, which provisions a payment
// link bound to that (session, note) pair. When the payment provider later
// reports a payment on the link via webhook, the service resolves the pair
// it was minted for, obtains an invoice from the note author's lightning
// address via LNURL-pay, and settles it from the operator's wallet with a
// zap request signed by a single-use key.
//
// Layers
//
//	Service   -> Enable/Disable (link provisioning), ProcessWebhook (correlation)
//	sessions  -> in-memory (session, note) <-> payment-link state, reaped on idle
//	zapper    -> the discovery -> invoice -> payment pipeline
//	lnurl     -> LNURL-pay discovery and callback client
//	lnbits    -> payment-link minting and outbound payment
//	relay     -> optional default nostr.EventSource
//
// Nothing is persisted: a restart forgets all sessions, and webhooks for
// forgotten links are rejected explicitly.
package zapgate
