// Package proxy implements the perkdesk backend proxy.
//
// The proxy is the only component that talks to the remote script service.
// It accepts GET and POST on /proxy, forwards the query string verbatim (and
// the POST body unchanged) to the configured backend URL, and stamps every
// outbound call with the resolved credential:
//
//  1. the inbound X-Auth header, when non-empty
//  2. otherwise the configured fallback secret
//  3. otherwise the empty string
//
// # Redirects
//
// Script-hosting services answer with a 302 pointing at a content host that
// serves the final payload. Generic redirect following drops custom headers
// across origins, so the outbound client never follows redirects itself.
// Instead Forward issues exactly one follow-up request to the Location with
// the same method, headers and body, and returns that response. A 3xx
// without a Location is returned unmodified. Chains longer than one hop are
// not followed: the second response is returned as-is.
//
// # Responses
//
// The final upstream status and body are passed through byte-for-byte. The
// upstream Content-Type is re-emitted, defaulting to application/json.
//
// Local failures use the {"ok":false,"error":...} envelope:
//
//   - 500 "Backend URL not configured" when no backend is set (no outbound call)
//   - 502 with the transport error when the upstream cannot be reached
//
// The proxy holds no state between requests.
package proxy
