// Package avatar delivers generated utterances to interchangeable,
// independently unreliable avatar "speak" backends.
//
// The Client façade combines a provider registry, a three-state health
// monitor with background canary probing, per-provider token-bucket
// admission control, a short-lived response cache, and a retry engine
// with full-jitter exponential backoff. Failures classify into retryable,
// provider-fatal (fail over) and caller-fatal (surface immediately), so a
// degraded backend never cascades into the rest of the rotation.
package avatar
