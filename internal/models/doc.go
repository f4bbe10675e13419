// Package models defines domain entities and persistence interfaces for the ytaudio conversion service.
//
// The package contains two persistent entities that share the filename key but are otherwise independent:
//
//   - [Job] : one conversion attempt moving through the [Phase] state machine; the source of truth for polling
//   - [LibraryEntry] : one durably stored, playable item; only exists for jobs that reached [PhaseUploaded]
//
// Projections used on the wire live next to their entities: [JobView] (with [PendingJobView] for unknown
// filenames) and [LibraryEntryView].
//
// Phase transitions are validated by [CanTransition]:
//
//	starting → downloaded → uploaded
//	starting → failed
//	downloaded → failed
//
// Both uploaded and failed are terminal.
package models
