// Package services talks to the evaluation backend over HTTP.
//
// # API Service
//
// [APIService] is a thin raw-HTTP client returning [APIResponse] values with the status, headers,
// body and a best-effort JSON decode. [NewAuthenticatedClient] attaches the configured bearer token
// through an [oauth2.Transport].
//
// # Run Service
//
// [RunService.ExecuteRun] triggers a run and classifies the execute response:
//   - 401, or an error body typed TOKEN_EXPIRED : [*TokenExpiredError]
//   - any other non-2xx, or a 2xx without a truthy "success" : [*RunError]
//   - non-JSON bodies additionally match [shared.ErrResponseFormat]
//
// [RunService.FetchProgress], [RunService.ListProgress] and [RunService.Statistics] read the
// progress REST API, which doubles as the fallback when the push connection is down.
//
// # Polling
//
// [Poller] follows a run by fetching its progress at a fixed rate (golang.org/x/time/rate)
// until it reaches a terminal status.
package services
