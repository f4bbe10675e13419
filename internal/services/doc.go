// Package services wraps the external collaborators of the conversion service.
//
// # Conversion Executor
//
// [Executor] turns a source URL into one local audio file plus best-effort [models.Metadata].
// [YTDLPExecutor] implements it on top of yt-dlp through go-ytdlp:
//
//  1. Metadata is read with --dump-single-json. Failure here is recorded in [ExecResult.MetadataErr]
//     and never fails the conversion.
//  2. The audio is fetched and transcoded into a private staging directory next to the destination.
//  3. The finished file is renamed onto the destination path, so callers never see a partial file there.
//
// Executor failures wrap [shared.ErrExecutorFailure].
//
// # API client
//
// [APIService] is the HTTP client the CLI uses to talk to a running server.
// Non-2xx responses are returned as errors:
//   - [shared.ErrInvalidInput] : 400
//   - [shared.ErrNotFound] : 404
//   - [shared.ErrServiceUnavailable] : 503 (queue full)
//   - [shared.ErrAPIRequest] : anything else
package services
