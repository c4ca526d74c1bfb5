// Package simplemoderation provides a reusable library for a content
// moderation workflow with pluggable repository, queue, classifier and
// archive backends.
//
// It exposes a single Service interface that orchestrates submission of
// content, asynchronous classification through a moderation queue, verdict
// upserts, joined queries, and manual moderator overrides. Implementations of
// repositories (memory, Postgres), queues (memory, Redis) and decision
// archives (memory, filesystem, S3) are provided under subpackages.
//
// A submission is persisted first and then published to the queue; a worker
// consumes one task at a time, calls the classifier, and upserts the verdict
// keyed by content id. Classifier failures never block ingestion: they
// degrade to a needs_review verdict so the item lands in a human-review
// queue.
package simplemoderation
