// Package tasks drives conversion jobs off the request path.
//
// # Pipeline
//
// [Pipeline.Run] moves one job through its phases, writing the job ledger strictly in order:
//
//  1. starting : the [services.Executor] writes the audio to [Pipeline.TempPath]
//  2. downloaded : the temp file is servable while it is copied into the [blobstore.Store]
//  3. uploaded : the library entry is upserted first, then the job flips, then the temp file is removed
//
// Any executor or storage error, and any panic, ends the job in failed with a readable message.
// Temp file removal is best-effort and only ever logged.
//
// # Pool
//
// [Pool] runs pipelines on a fixed number of workers fed by a bounded queue.
// [Pool.Submit] never blocks: a full queue returns [shared.ErrQueueFull] so the caller can reject the request.
// Dispatch is throttled with a [rate.Limiter] when [shared.WorkersConfig.RateLimit] is positive.
//
// # Progress Reporting
//
// Transitions are also published as [ProgressUpdate] values on an optional channel.
// Updates use select with default so a slow reader never stalls a conversion.
package tasks
