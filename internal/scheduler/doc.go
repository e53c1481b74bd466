// Package scheduler fires the periodic index, inference and retention jobs
// from cron expressions.
//
// Jobs never overlap themselves, and every job skips its turn while an
// index run holds the lock. Stop cancels in-flight jobs and waits for them.
package scheduler
