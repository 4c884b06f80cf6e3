// Package dedupe suppresses webhook redeliveries. Messaging providers
// re-post a webhook when the previous attempt was slow or failed, so the
// gateway remembers recently accepted message SIDs for a short window.
package dedupe
