// Package loyalty is the typed client for the perkdesk proxy.
//
// Four operations are exposed: ListCustomers, AddOrUpdate, ApplySpend and
// ResetReward. Each one sends the caller's credential in the X-Auth header and
// names the remote action in the "action" query parameter; the proxy forwards
// the call to the remote script service unchanged.
//
// Input is checked before anything reaches the network. Customer names are
// required, emails must look like addresses, ids must be non-empty and spend
// amounts must be finite and positive. Failures return *ValidationError.
//
// Responses are decoded the same way for every operation. A non-2xx status
// becomes *APIError carrying the backend's error text when it sent one. A 2xx
// JSON object with a boolean "ok" is an envelope: false becomes *APIError,
// true yields "data". Anything else, including a bare array or a non-JSON
// body, is taken as the payload itself.
//
// The client never retries and never caches. Business rules such as goal
// math belong to the remote service; Customer only renders what it returns.
package loyalty
